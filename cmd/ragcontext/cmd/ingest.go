package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/corpus"
	"github.com/Aman-CERP/ragcontext/internal/output"
)

type ingestOptions struct {
	output string
	meta   chunk.Metadata
}

func newIngestCmd(global *globalOptions) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Convert a directory of text and PDF files into a corpus file",
		Long: `Read every .txt, .md and .pdf file under a directory, clean the
extracted text, split it into sentence lines and write one corpus document
per file. Files that cannot be read or parsed are skipped with a warning.

Metadata flags apply to every document; omitted flags take the configured
corpus defaults. The corpus file is replaced atomically, so a running
'serve --watch' picks it up as a single change.

Examples:
  ragcontext ingest ./discursos
  ragcontext ingest ./cartas --kind carta --date 1952 -o data/cartas.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, global, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Corpus file to write (default: configured corpus path)")
	cmd.Flags().StringVar(&opts.meta.Author, "author", "", "Author of every document")
	cmd.Flags().StringVar(&opts.meta.Kind, "kind", "", "Kind of every document")
	cmd.Flags().StringVar(&opts.meta.Date, "date", "", "Date of every document")
	cmd.Flags().StringVar(&opts.meta.Topic, "topic", "", "Topic of every document")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, global *globalOptions, dir string, opts ingestOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}

	meta := cfg.Defaults()
	if opts.meta.Author != "" {
		meta.Author = opts.meta.Author
	}
	if opts.meta.Kind != "" {
		meta.Kind = opts.meta.Kind
	}
	if opts.meta.Date != "" {
		meta.Date = opts.meta.Date
	}
	if opts.meta.Topic != "" {
		meta.Topic = opts.meta.Topic
	}

	target := opts.output
	if target == "" {
		target = cfg.Corpus.Path
	}

	slog.Info("ingest_started", slog.String("dir", dir), slog.String("output", target))

	docs, err := corpus.Ingest(ctx, dir, meta)
	if err != nil {
		return err
	}
	if err := corpus.WriteJSON(target, docs); err != nil {
		return err
	}

	lines := 0
	for _, d := range docs {
		lines += len(d.Lines)
	}
	slog.Info("ingest_complete", slog.Int("documents", len(docs)), slog.Int("lines", lines))

	out := output.New(cmd.OutOrStdout())
	out.Successf("Wrote %d documents (%d lines)", len(docs), lines)
	out.KeyValue(
		[2]string{"Output", target},
		[2]string{"Author", meta.Author},
		[2]string{"Kind", meta.Kind},
		[2]string{"Date", meta.Date},
		[2]string{"Topic", meta.Topic},
	)
	return nil
}
