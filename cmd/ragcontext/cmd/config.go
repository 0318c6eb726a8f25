package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/ragcontext/internal/config"
	"github.com/Aman-CERP/ragcontext/internal/output"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage ragcontext configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/ragcontext/config.yaml)
  3. Project config (.ragcontext.yaml, .ragcontext.yml or .ragcontext.toml)
  4. Environment variables (RAGCONTEXT_*)
  5. Command line flags`,
		Example: `  # Create user config with the defaults
  ragcontext config init

  # Show effective configuration
  ragcontext config show

  # Print user config file path
  ragcontext config path`,
	}

	cmd.AddCommand(newConfigInitCmd(global))
	cmd.AddCommand(newConfigShowCmd(global))
	cmd.AddCommand(newConfigPathCmd(global))

	return cmd
}

func newConfigInitCmd(global *globalOptions) *cobra.Command {
	var (
		force   bool
		project bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Long: `Write a configuration file holding every setting at its default value.

By default the user config is written. With --project the file is written
to the project directory as .ragcontext.yaml (or .ragcontext.toml).
An existing file is kept unless --force is given; it is then backed up
before being replaced.`,
		Example: `  ragcontext config init
  ragcontext config init --project --format toml
  ragcontext config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, global, force, project, format)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (a backup is kept)")
	cmd.Flags().BoolVar(&project, "project", false, "Write the project config instead of the user config")
	cmd.Flags().StringVar(&format, "format", "yaml", "File format: yaml, toml")

	return cmd
}

func newConfigShowCmd(global *globalOptions) *cobra.Command {
	var (
		format string
		source string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging defaults, the user config, the
project config, environment variables and flags.`,
		Example: `  ragcontext config show
  ragcontext config show --format json
  ragcontext config show --source defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, global, format, source)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml, toml, json")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func newConfigPathCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			project := config.ProjectConfigPath(projectDir(global))
			if project == "" {
				project = "(none)"
			}
			out.KeyValue(
				[2]string{"User", config.GetUserConfigPath()},
				[2]string{"Project", project},
			)
			return nil
		},
	}
}

// projectDir is --dir or the working directory.
func projectDir(global *globalOptions) string {
	if global.dir != "" {
		return global.dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func runConfigInit(cmd *cobra.Command, global *globalOptions, force, project bool, format string) error {
	out := output.New(cmd.OutOrStdout())

	if format != "yaml" && format != "toml" {
		return fmt.Errorf("invalid format %q: use yaml or toml", format)
	}

	path := config.GetUserConfigPath()
	if format == "toml" {
		path = filepath.Join(filepath.Dir(path), "config.toml")
	}
	if project {
		path = filepath.Join(projectDir(global), ".ragcontext."+format)
	}

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("", "Location: %s", path)
			out.Status("", "Use --force to replace it (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		out.Statusf("", "Backup: %s", backup)
	}

	cfg := config.NewConfig()
	var err error
	if format == "toml" {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			err = cfg.WriteTOML(path)
		}
	} else {
		err = cfg.WriteYAML(path)
	}
	if err != nil {
		return err
	}

	out.Success("Created configuration")
	out.Statusf("", "Location: %s", path)
	if project {
		out.Status("", "User config and RAGCONTEXT_* variables still apply underneath it")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, global *globalOptions, format, source string) error {
	var (
		cfg *config.Config
		err error
	)
	switch source {
	case "merged":
		cfg, err = loadConfig(global)
		if err != nil {
			return err
		}
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("invalid source %q: use merged or defaults", source)
	}

	w := cmd.OutOrStdout()
	switch format {
	case "json":
		return output.New(w).JSON(cfg)
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("invalid format %q: use yaml, toml or json", format)
	}
}
