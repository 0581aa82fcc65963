// Package cli wires the cobra command tree: compose runs batches,
// scan inspects material, gpu manages the encoder profile, settings
// edits configuration and doctor checks the environment.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"videomix/internal/config"
	"videomix/internal/paths"
)

var (
	configDir  string
	outputJSON bool
	noProgress bool
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videomix",
		Short: "Batch video mixer: compose narrated scene videos from material folders",
	}

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Override the global config directory (default ~/.videomix)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable interactive progress output")

	cmd.AddCommand(newComposeCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newGPUCmd())
	cmd.AddCommand(newSettingsCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// resolvePaths honors the --config-dir override.
func resolvePaths() (paths.ToolPaths, error) {
	if configDir != "" {
		return paths.FromGlobalDir(configDir), nil
	}
	return paths.Resolve()
}

// loadSettings resolves paths, reads settings and applies the
// configured temp dir override.
func loadSettings() (paths.ToolPaths, config.Settings, error) {
	pp, err := resolvePaths()
	if err != nil {
		return paths.ToolPaths{}, config.Settings{}, err
	}
	settings, err := config.Load(pp.SettingsFile)
	if err != nil {
		return paths.ToolPaths{}, config.Settings{}, err
	}
	if settings.Paths.TempDir != "" {
		pp = pp.WithTempDir(settings.Paths.TempDir)
	}
	return pp, settings, nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}
