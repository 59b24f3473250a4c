package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanlex/configs"
	"github.com/Aman-CERP/amanlex/internal/config"
	"github.com/Aman-CERP/amanlex/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage amanlex configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/amanlex/config.yaml)
  3. Project config (.amanlex.yaml in --config)
  4. Environment variables (AMANLEX_*, also read from .env)`,
		Example: `  # Create .amanlex.yaml in the current directory
  amanlex config init

  # Create the user config
  amanlex config init --user

  # Show effective configuration
  amanlex config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, user, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (user config is backed up first)")
	cmd.Flags().BoolVar(&user, "user", false, "Create the user config instead of .amanlex.yaml")

	return cmd
}

func runConfigInit(cmd *cobra.Command, user, force bool) error {
	out := output.New(cmd.OutOrStdout())

	path := filepath.Join(flags.configDir, ".amanlex.yaml")
	template := configs.ProjectConfigTemplate
	if user {
		path = config.GetUserConfigPath()
		template = configs.UserConfigTemplate
	}

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to overwrite")
			return nil
		}
		if user {
			backup, err := config.BackupUserConfig()
			if err != nil {
				return fmt.Errorf("failed to backup config: %w", err)
			}
			out.Statusf("💾", "Backup: %s", backup)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Status("📋", "Run 'amanlex config show' to verify")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return encodeJSON(cmd, cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user and project config file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, "user:   ", config.GetUserConfigPath())
			_, _ = fmt.Fprintln(w, "project:", filepath.Join(flags.configDir, ".amanlex.yaml"))
			return nil
		},
	}
}

