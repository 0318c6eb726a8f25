package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragcontext/internal/output"
	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK        int
	candidateK  int
	lexicalOnly bool
	format      string // "text", "json", "context"
	noColor     bool
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <message...>",
		Short: "Retrieve the passages most relevant to a message",
		Long: `Retrieve the passages most relevant to a message.

BM25 shortlists candidate passages, which are then reranked by embedding
similarity with Maximal Marginal Relevance. Without a provider, or with
--lexical-only, the BM25 order is kept.

Examples:
  ragcontext search "la justicia social y los trabajadores"
  ragcontext search "tercera posición" --top-k 6
  ragcontext search "economía nacional" --lexical-only --format json
  ragcontext search "la comunidad organizada" --format context`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, global, message, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Passages to return (default from config)")
	cmd.Flags().IntVarP(&opts.candidateK, "candidates", "c", 0, "BM25 shortlist size (default from config)")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical-only", false, "Skip semantic reranking")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, context")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, global *globalOptions, message string, opts searchOptions) error {
	switch opts.format {
	case "text", "json", "context":
	default:
		return fmt.Errorf("invalid format %q: use text, json or context", opts.format)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, global, appOptions{telemetry: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("search_started",
		slog.String("query", message),
		slog.Int("top_k", opts.topK),
		slog.Bool("lexical_only", opts.lexicalOnly))

	res := a.engine.Retrieve(ctx, message, search.SearchOptions{
		TopK:        opts.topK,
		CandidateK:  opts.candidateK,
		LexicalOnly: opts.lexicalOnly,
	})

	w := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		return output.New(w).JSON(res)
	case "context":
		_, err := fmt.Fprintln(w, res.Context())
		return err
	}

	passages := make([]ui.Passage, 0, len(res.Chunks))
	for i, sc := range res.Chunks {
		p := ui.Passage{
			Rank:     i + 1,
			ID:       sc.ID,
			Lexical:  sc.Lexical,
			Semantic: sc.Semantic,
			Matched:  sc.Matched,
		}
		if sc.Chunk != nil {
			p.Kind, p.Date, p.Topic, p.Text = sc.Chunk.Kind, sc.Chunk.Date, sc.Chunk.Topic, sc.Chunk.Text
		}
		passages = append(passages, p)
	}

	noColor := opts.noColor || ui.DetectNoColor() || !ui.IsTTY(w)
	ui.NewResultRenderer(w, noColor).Render(ui.ResultSummary{
		Query:      res.Query,
		Mode:       string(res.Mode),
		Fallback:   res.Fallback,
		Candidates: res.Candidates,
		Elapsed:    res.Duration.String(),
	}, passages)
	return nil
}
