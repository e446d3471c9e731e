// Package cmd provides the CLI commands for memmcp.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memmcp/memmcp/internal/config"
	"github.com/memmcp/memmcp/pkg/version"
)

// Persistent flags shared by every command.
var (
	cfgFile    string
	memoryPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the memmcp CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memmcp",
		Short: "Persistent agent memory over MCP",
		Long: `memmcp keeps agent memory in a human-readable markdown tree and
mirrors it into Postgres for hybrid (vector + fulltext) search.

Running 'memmcp' with no arguments starts the MCP server on stdio,
which is what MCP client configurations should invoke. Use the
subcommands for one-shot maintenance from a shell.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runServe(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("memmcp version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file (default: memmcp.yaml)")
	cmd.PersistentFlags().StringVar(&memoryPath, "memory-path", "", "Memory file tree root (overrides config)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with signal-driven cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig builds the effective configuration with flag overrides
// applied on top of file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if memoryPath != "" {
		cfg.Files.Path = memoryPath
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
