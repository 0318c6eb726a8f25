package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerrors "github.com/Aman-CERP/ragcontext/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{name: "deadline", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout, wantMessage: "timed out"},
		{name: "canceled", err: fmt.Errorf("retrieve: %w", context.Canceled), wantCode: ErrCodeTimeout, wantMessage: "canceled"},
		{name: "tool not found", err: ErrToolNotFound, wantCode: ErrCodeMethodNotFound},
		{name: "invalid params", err: ErrInvalidParams, wantCode: ErrCodeInvalidParams},
		{name: "unknown", err: fmt.Errorf("boom"), wantCode: ErrCodeInternalError, wantMessage: "Internal"},
		{
			name:        "corpus not found",
			err:         ragerrors.IOError("corpus file not found", nil).WithSuggestion("Check corpus.path."),
			wantCode:    ErrCodeCorpusNotFound,
			wantMessage: "Check corpus.path.",
		},
		{name: "provider timeout", err: ragerrors.New(ragerrors.ErrCodeProviderTimeout, "slow", nil), wantCode: ErrCodeTimeout},
		{name: "missing credential", err: ragerrors.New(ragerrors.ErrCodeMissingCredential, "no key", nil), wantCode: ErrCodeProviderUnavailable},
		{name: "circuit open", err: ragerrors.ErrCircuitOpen, wantCode: ErrCodeProviderUnavailable},
		{name: "provider response", err: ragerrors.New(ragerrors.ErrCodeProviderResponse, "bad json", nil), wantCode: ErrCodeEmbeddingFailed},
		{name: "validation", err: ragerrors.ValidationError("bad lambda", nil), wantCode: ErrCodeInvalidParams},
		{name: "wrapped rag error", err: fmt.Errorf("load: %w", ragerrors.ConfigError("bad file", nil)), wantCode: ErrCodeInternalError, wantMessage: "bad file"},
		{name: "mcp error passes through", err: NewInvalidParamsError("top_k"), wantCode: ErrCodeInvalidParams, wantMessage: "top_k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)

			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			if tt.wantMessage != "" {
				assert.Contains(t, got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "Invalid parameters."}
	assert.Equal(t, "MCP error -32602: Invalid parameters.", err.Error())
}
