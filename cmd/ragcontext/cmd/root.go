// Package cmd provides the CLI commands for ragcontext.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	ragerrors "github.com/Aman-CERP/ragcontext/internal/errors"
	"github.com/Aman-CERP/ragcontext/internal/logging"
	"github.com/Aman-CERP/ragcontext/internal/profiling"
	"github.com/Aman-CERP/ragcontext/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	debug    bool
	corpus   string
	dir      string
	embedder string
	profile  profiling.Options
}

// Debug logging and profiling state for the running command
var (
	loggingCleanup func()
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the ragcontext CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ragcontext",
		Short: "Hybrid lexical and semantic retrieval over a speech corpus",
		Long: `ragcontext finds the passages of a document corpus most relevant to a
message and formats them as a context block for a language model prompt.

Candidates are shortlisted with BM25 and reranked with embedding
similarity and Maximal Marginal Relevance. Without an embedding provider
the lexical ranking is returned as is.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("ragcontext version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.ragcontext/logs/")
	pf.StringVar(&opts.corpus, "corpus", "", "Corpus JSON file (overrides config)")
	pf.StringVar(&opts.dir, "dir", "", "Project directory holding .ragcontext.yaml (default: current directory)")
	pf.StringVar(&opts.embedder, "embedder", "", "Embedding provider: openai, ollama, static, none")
	pf.StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	pf.StringVar(&opts.profile.Heap, "profile-mem", "", "Write heap profile to file")
	pf.StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		return startProfilingAndLogging(c, opts)
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return stopProfilingAndLogging()
	}

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newWarmCmd(opts))
	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts profiling and debug logging if flags are set.
// serve logs to the file only because stdio carries the protocol.
func startProfilingAndLogging(c *cobra.Command, opts *globalOptions) error {
	if opts.debug {
		cfg := logging.DefaultConfig()
		cfg.Level = "debug"
		cfg.WriteToStderr = c.Name() != "serve"
		logger, cleanup, err := logging.Setup(cfg)
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("command", c.Name()),
			slog.String("version", version.Version))
	}

	if opts.profile.Enabled() {
		s, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		profileSession = s
	}
	return nil
}

func stopProfilingAndLogging() error {
	err := profileSession.Stop()
	profileSession = nil

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints any error for the terminal.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		debug, _ := root.PersistentFlags().GetBool("debug")
		fmt.Fprintln(os.Stderr, ragerrors.FormatForUser(err, debug))
		// PostRun is skipped when RunE fails
		_ = stopProfilingAndLogging()
	}
	return err
}
