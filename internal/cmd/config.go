package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/ndvlink/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View ndvlink configuration",
		Long: `View ndvlink configuration.

Without arguments, displays the current configuration.
Use 'config init' to create a config file with every option.`,
		RunE: a.runConfigShow,
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show current configuration",
			RunE:  a.runConfigShow,
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a default config file",
			Long:  `Create a default config file at ~/.config/ndvlink/config.yaml with all available options.`,
			RunE:  a.runConfigInit,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the config file path",
			RunE:  a.runConfigPath,
		},
	)
	return configCmd
}

func (a *app) runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, headerStyle.Render("Current configuration:"))
	fmt.Fprintln(out)

	// Show where config is being read from
	if a.v.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", a.v.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	// Server settings
	fmt.Fprintln(out, "server:")
	fmt.Fprintf(out, "  host: %s\n", cfg.Server.Host)
	fmt.Fprintf(out, "  port: %d\n", cfg.Server.Port)
	fmt.Fprintf(out, "  user: %s\n", cfg.Server.User)
	fmt.Fprintf(out, "  parameters: %s\n", cfg.Server.Parameters)
	fmt.Fprintf(out, "  client_codepage: %s\n", cfg.Server.ClientCodepage)
	fmt.Fprintf(out, "  transport: %s\n", cfg.Server.Transport)
	fmt.Fprintf(out, "  fixture: %s\n", cfg.Server.Fixture)
	fmt.Fprintf(out, "  connect_retries: %d\n", cfg.Server.ConnectRetries)
	fmt.Fprintf(out, "  retry_backoff_ms: %d\n", cfg.Server.RetryBackoffMs)

	// Listing settings
	fmt.Fprintln(out, "listing:")
	fmt.Fprintf(out, "  page_limit: %d\n", cfg.Listing.PageLimit)
	fmt.Fprintf(out, "  default_filter: %s\n", cfg.Listing.DefaultFilter)

	// Logging settings
	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  file: %s\n", cfg.Logging.File)
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(out, "  compress: %v\n", cfg.Logging.Compress)

	return nil
}

const configTemplate = `# ndvlink configuration

# Development server connection. The password is never stored here;
# set NDVLINK_PASSWORD or enter it when prompted.
server:
  host: ""
  port: 2700
  user: ""
  # Protocol parameters sent on connect
  parameters: "CFICU=ON,CP=IBM01141"
  # Single-byte codepage announced for the client (e.g. windows-1252, ISO-8859-1)
  client_codepage: windows-1252
  # Transport driver; "fixture" serves a YAML description of a server
  transport: fixture
  fixture: ""
  # Retries for unreachable servers; rejected credentials are never retried
  connect_retries: 0
  retry_backoff_ms: 500

# Paginated listings
listing:
  # Maximum follow-up page requests per listing
  page_limit: 1000
  default_filter: "*"

# Diagnostic logging (JSON lines)
logging:
  # Empty logs to stderr
  file: ""
  # debug, info, warn, error
  level: warn
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func (a *app) runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if exists, _ := afero.Exists(a.fs, configFile); exists {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := a.fs.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(a.fs, configFile, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize ndvlink's behavior.")
	return nil
}

func (a *app) runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if a.v.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", a.v.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: NDVLINK_* (e.g., NDVLINK_SERVER_HOST, NDVLINK_PASSWORD)")
	return nil
}
