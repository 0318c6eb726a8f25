package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragcontext/internal/embed"
	"github.com/Aman-CERP/ragcontext/internal/output"
	"github.com/Aman-CERP/ragcontext/internal/ui"
)

type indexOptions struct {
	showChunks int
	format     string // "text", "json"
	noColor    bool
}

// chunkView is the JSON form of a chunk in the index report.
type chunkView struct {
	ID     int    `json:"id"`
	Author string `json:"author"`
	Kind   string `json:"kind"`
	Date   string `json:"date"`
	Topic  string `json:"topic"`
	Tokens int    `json:"tokens"`
	Text   string `json:"text"`
}

type indexReport struct {
	Status ui.StatusInfo `json:"status"`
	Chunks []chunkView   `json:"chunks"`
}

func newIndexCmd(global *globalOptions) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the index and print corpus statistics",
		Long: `Load the corpus, build the lexical index and report what was built:
documents, chunks, vocabulary size, average chunk length and how many
chunks already have a cached embedding.

Examples:
  ragcontext index
  ragcontext index --show-chunks 3
  ragcontext index --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, global, opts)
		},
	}

	cmd.Flags().IntVar(&opts.showChunks, "show-chunks", 0, "Print the first N chunks")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts indexOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: use text or json", opts.format)
	}

	a, err := openApp(ctx, global, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	info := a.statusInfo()

	var chunks []chunkView
	if opts.showChunks > 0 {
		all := a.engine.Index().Chunks()
		for _, c := range all[:min(opts.showChunks, len(all))] {
			chunks = append(chunks, chunkView{
				ID: c.ID, Author: c.Author, Kind: c.Kind, Date: c.Date,
				Topic: c.Topic, Tokens: len(c.Tokens), Text: c.Text,
			})
		}
	}

	w := cmd.OutOrStdout()
	noColor := opts.noColor || ui.DetectNoColor() || !ui.IsTTY(w)
	r := ui.NewStatusRenderer(w, noColor)

	if opts.format == "json" {
		if len(chunks) == 0 {
			return r.RenderJSON(info)
		}
		return output.New(w).JSON(indexReport{Status: info, Chunks: chunks})
	}

	if err := r.Render(info); err != nil {
		return err
	}
	out := output.New(w)
	for _, c := range chunks {
		out.Newline()
		out.Statusf("#", "%d  [%s · %s · %s]  %d tokens", c.ID, c.Kind, c.Date, c.Topic, c.Tokens)
		out.Code(c.Text)
	}
	return nil
}

// statusInfo converts the engine status for display.
func (a *app) statusInfo() ui.StatusInfo {
	st := a.engine.Status()
	info := ui.StatusInfo{
		Source:           st.Source,
		Fingerprint:      st.Fingerprint,
		Generation:       st.Generation,
		Documents:        st.Documents,
		Chunks:           st.Chunks,
		Terms:            st.Lexical.TermCount,
		AvgChunkLen:      st.Lexical.AvgDocLength,
		LoadedAt:         st.LoadedAt,
		LexicalBackend:   st.LexicalBackend,
		CachedEmbeddings: st.CachedEmbeddings,
		CachePath:        st.CachePath,
		Provider:         a.providerName(),
		ProviderModel:    st.Model,
	}
	if st.CachePath != "" {
		if fi, err := os.Stat(st.CachePath); err == nil {
			info.CacheSize = fi.Size()
		}
	}

	switch {
	case a.embedder != nil:
		info.ProviderStatus = "ready"
	case a.cfg.Embeddings.Provider == string(embed.ProviderNone):
		info.ProviderStatus = "disabled"
	default:
		info.ProviderStatus = "unavailable"
	}
	return info
}
