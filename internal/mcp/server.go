package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/ragcontext/internal/async"
	"github.com/Aman-CERP/ragcontext/internal/config"
	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/telemetry"
	"github.com/Aman-CERP/ragcontext/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "ragcontext"

// Retriever is the engine surface the server needs.
type Retriever interface {
	Retrieve(ctx context.Context, message string, opts search.SearchOptions) *search.Result
	Status() search.Status
	LoadCorpus(ctx context.Context, path string) error
}

// Server bridges MCP clients with the retrieval engine.
type Server struct {
	mcp        *mcp.Server
	engine     Retriever
	config     *config.Config
	corpusPath string
	logger     *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics
	// Background cache warm-up (optional, set via SetWarmProgress)
	warm *async.Progress

	// reloadMu serializes reload_corpus calls
	reloadMu sync.Mutex
	mu       sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name: ToolRelevantContext,
		Description: "Returns the passages of the Perón corpus most relevant to a message, " +
			"formatted as [kind · date · topic] text blocks ready to paste into a prompt. " +
			"Passages are shortlisted with BM25 and reranked with embeddings for diversity when a provider is configured.",
	},
	{
		Name:        ToolCorpusStatus,
		Description: "Reports the loaded corpus: document and chunk counts, fingerprint, cached embeddings, the active embedding provider and query statistics.",
	},
	{
		Name:        ToolReloadCorpus,
		Description: "Re-reads the corpus file and atomically replaces the index. Queries in flight finish against the previous index.",
	},
}

// NewServer creates a new MCP server. corpusPath is re-read by reload_corpus.
func NewServer(engine Retriever, cfg *config.Config, corpusPath string) (*Server, error) {
	if engine == nil {
		return nil, errors.New("retrieval engine is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if corpusPath == "" {
		corpusPath = cfg.Corpus.Path
	}

	s := &Server{
		engine:     engine,
		config:     cfg,
		corpusPath: corpusPath,
		logger:     slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// SetMetrics attaches query telemetry reported by corpus_status.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// SetWarmProgress attaches background warm-up progress reported by
// corpus_status.
func (s *Server) SetWarmProgress(p *async.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warm = p
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-style arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolRelevantContext:
		in := RelevantContextInput{}
		in.Message, _ = args["message"].(string)
		if v, ok := args["top_k"].(float64); ok {
			in.TopK = int(v)
		}
		if v, ok := args["candidate_k"].(float64); ok {
			in.CandidateK = int(v)
		}
		in.LexicalOnly, _ = args["lexical_only"].(bool)
		return s.relevantContext(ctx, in)
	case ToolCorpusStatus:
		return s.corpusStatus(), nil
	case ToolReloadCorpus:
		return s.reloadCorpus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) relevantContext(ctx context.Context, in RelevantContextInput) (RelevantContextOutput, error) {
	if strings.TrimSpace(in.Message) == "" {
		return RelevantContextOutput{}, NewInvalidParamsError("message cannot be empty or whitespace only")
	}

	requestID := uuid.NewString()
	opts := search.SearchOptions{
		TopK:        clampLimit(in.TopK, s.config.Search.TopK, 1, maxTopK),
		CandidateK:  clampLimit(in.CandidateK, s.config.Search.CandidateK, 1, maxCandidateK),
		LexicalOnly: in.LexicalOnly,
	}
	if opts.CandidateK < opts.TopK {
		opts.CandidateK = opts.TopK
	}

	s.logger.Info("relevant_context started",
		slog.String("request_id", requestID),
		slog.Int("message_len", len(in.Message)),
		slog.Int("top_k", opts.TopK),
		slog.Int("candidate_k", opts.CandidateK))

	res := s.engine.Retrieve(ctx, in.Message, opts)
	if err := ctx.Err(); err != nil {
		s.logger.Warn("relevant_context canceled",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return RelevantContextOutput{}, MapError(err)
	}

	s.logger.Info("relevant_context completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", res.Duration),
		slog.String("mode", string(res.Mode)),
		slog.String("fallback", res.Fallback),
		slog.Int("result_count", len(res.Chunks)))

	return ToRelevantContextOutput(res), nil
}

func (s *Server) corpusStatus() *CorpusStatusOutput {
	st := s.engine.Status()
	out := &CorpusStatusOutput{
		Corpus:     st,
		Provider:   s.config.Embeddings.Provider,
		Model:      st.Model,
		Generation: st.Generation,
	}
	if !st.SemanticEnabled {
		out.Provider = "none"
	}

	s.mu.RLock()
	m, warm := s.metrics, s.warm
	s.mu.RUnlock()
	if m != nil {
		out.Queries = toQueryStats(m.Snapshot())
	}
	if warm != nil {
		snap := warm.Snapshot()
		out.Warm = &snap
	}
	return out
}

// Reload rebuilds the index from the corpus file, serialized with the
// reload_corpus tool. The corpus watcher calls it on every change.
func (s *Server) Reload(ctx context.Context) error {
	_, err := s.reloadCorpus(ctx)
	return err
}

func (s *Server) reloadCorpus(ctx context.Context) (*CorpusStatusOutput, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	requestID := uuid.NewString()
	start := time.Now()
	s.logger.Info("reload_corpus started",
		slog.String("request_id", requestID),
		slog.String("path", s.corpusPath))

	if err := s.engine.LoadCorpus(ctx, s.corpusPath); err != nil {
		s.logger.Error("reload_corpus failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	out := s.corpusStatus()
	s.logger.Info("reload_corpus completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("chunks", out.Corpus.Chunks),
		slog.Int("generation", out.Generation))
	return out, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolRelevantContext, Description: tools[0].Description}, s.mcpRelevantContextHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolCorpusStatus, Description: tools[1].Description}, s.mcpCorpusStatusHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolReloadCorpus, Description: tools[2].Description}, s.mcpReloadCorpusHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// mcpRelevantContextHandler returns the formatted context as text content
// and the passages as structured content.
func (s *Server) mcpRelevantContextHandler(ctx context.Context, _ *mcp.CallToolRequest, input RelevantContextInput) (
	*mcp.CallToolResult,
	RelevantContextOutput,
	error,
) {
	out, err := s.relevantContext(ctx, input)
	if err != nil {
		return nil, RelevantContextOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out.Context}},
	}, out, nil
}

func (s *Server) mcpCorpusStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ CorpusStatusInput) (
	*mcp.CallToolResult,
	*CorpusStatusOutput,
	error,
) {
	return nil, s.corpusStatus(), nil
}

func (s *Server) mcpReloadCorpusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ReloadCorpusInput) (
	*mcp.CallToolResult,
	*CorpusStatusOutput,
	error,
) {
	out, err := s.reloadCorpus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// Serve runs the server on the configured transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
