package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{name: "counts", event: ProgressEvent{Stage: StageEmbedding, Current: 64, Total: 128}, want: "[EMBED] 64/128\n"},
		{name: "failures", event: ProgressEvent{Stage: StageEmbedding, Current: 64, Total: 128, Failed: 32}, want: "[EMBED] 64/128 (32 failed)\n"},
		{name: "message only", event: ProgressEvent{Stage: StageLoading, Message: "reading corpus"}, want: "[LOAD] reading corpus\n"},
		{name: "nothing to say", event: ProgressEvent{Stage: StageIndexing}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))

			r.UpdateProgress(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	require.NoError(t, r.Start(context.Background()))

	// When: a whole run is rendered
	for _, stage := range []Stage{StageLoading, StageIndexing, StageEmbedding} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 1, Total: 2, Message: "working"})
	}
	r.AddError(ErrorEvent{Err: errors.New("batch 3 failed"), IsWarn: true})
	r.Complete(CompletionStats{Documents: 2, Chunks: 5, Embedded: 5, Batches: 1, Duration: time.Second})
	require.NoError(t, r.Stop())

	// Then: no escape sequences are written
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "WARN: batch 3 failed")
}

func TestPlainRenderer_Complete(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(CompletionStats{
		Documents: 3, Chunks: 10, Embedded: 8, Failed: 2, Batches: 2,
		Duration: 2 * time.Second,
		Provider: ProviderInfo{Name: "openai", Model: "text-embedding-3-small", Dimensions: 1536},
	})

	out := buf.String()
	assert.Contains(t, out, "Complete: 3 documents, 10 chunks, 8 embedded in 2 batches (2 failed) in 2s")
	assert.Contains(t, out, "Throughput: 4.0 chunks/sec")
	assert.Contains(t, out, "Provider: openai (text-embedding-3-small, 1536 dims)")
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)

	_, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestStage_Names(t *testing.T) {
	assert.Equal(t, "Embedding", StageEmbedding.String())
	assert.Equal(t, "DONE", StageComplete.Icon())
	assert.Equal(t, "???", Stage(42).Icon())
}

func TestDetectCI(t *testing.T) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		t.Setenv(v, "")
	}
	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}
