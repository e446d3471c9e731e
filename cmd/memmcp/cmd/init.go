package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memmcp/memmcp/configs"
	"github.com/memmcp/memmcp/internal/ui"
)

func newInitCmd() *cobra.Command {
	var writeConfig bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the memory tree and base files",
		Long: `Create the memory root, the main index file, and the JSON file
index. Safe to run more than once; an initialized tree is left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd, writeConfig)
		},
	}

	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "Write an annotated memmcp.yaml to the working directory")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, writeConfig bool) error {
	if writeConfig {
		if err := writeConfigTemplate(cmd); err != nil {
			return err
		}
	}

	a, err := buildApp(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.manager.Initialize(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styles := ui.StylesFor(out)
	if created {
		_, _ = fmt.Fprintln(out, styles.Success.Render("Memory initialized at "+a.cfg.MemoryPath()))
	} else {
		_, _ = fmt.Fprintln(out, styles.Dim.Render("Memory already initialized at "+a.cfg.MemoryPath()))
	}
	return nil
}

// writeConfigTemplate copies the embedded example configuration to
// memmcp.yaml, refusing to clobber an existing file.
func writeConfigTemplate(cmd *cobra.Command) error {
	const path = "memmcp.yaml"
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; remove it first", path)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, ui.StylesFor(out).Success.Render("Wrote "+path))
	return nil
}
