package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragcontext/internal/output"
	"github.com/Aman-CERP/ragcontext/internal/preflight"
)

func newDoctorCmd(global *globalOptions) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the corpus, data directory, cache and provider",
		Long: `Run diagnostics to ensure ragcontext can serve queries.

Checks:
  - Corpus file parses
  - Data directory is writable with 50MB free
  - Embedding cache matches the model and the corpus revision
  - Embedding provider answers a probe request

Cache and provider problems are warnings: retrieval falls back to lexical
ranking. Corpus and data directory failures exit with an error.`,
		Example: `  ragcontext doctor
  ragcontext doctor --verbose
  ragcontext doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, global, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, global *globalOptions, verbose, jsonOutput bool) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	builder, err := newBuilder(cfg)
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(ctx, cfg, builder.Tokenizer())
	if err != nil {
		return err
	}
	if embedder != nil {
		defer func() { _ = embedder.Close() }()
	}

	cacheModel := cfg.Embeddings.Model
	if embedder != nil {
		cacheModel = embedder.ModelName()
	}

	checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(verbose))
	results := checker.RunAll(ctx, preflight.Target{
		CorpusPath: cfg.Corpus.Path,
		Defaults:   cfg.Defaults(),
		DataDir:    cfg.DataDir,
		CachePath:  cfg.Embeddings.CachePath,
		CacheModel: cacheModel,
		Embedder:   embedder,
	})

	if jsonOutput {
		if err := output.New(cmd.OutOrStdout()).JSON(map[string]any{
			"status": checker.SummaryStatus(results),
			"checks": results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errors.New("preflight checks failed")
	}
	return nil
}
