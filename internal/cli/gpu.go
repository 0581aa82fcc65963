package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"videomix/internal/execx"
	"videomix/internal/gpu"
	"videomix/internal/logx"
	"videomix/internal/tools"
	"videomix/internal/tui"
)

var gpuDetectForce bool

func newGPUCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpu",
		Short: "Manage the cached hardware encoder profile",
	}
	cmd.AddCommand(newGPUDetectCmd(), newGPUShowCmd(), newGPUResetCmd())
	return cmd
}

func newGPUDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Probe for a usable hardware encoder and cache the result",
		Long: "Probes nvidia-smi and the available FFmpeg encoders, verifies the best " +
			"candidate with a short test encode, and caches the profile so compose " +
			"runs skip the probe.",
		RunE: runGPUDetect,
	}
	cmd.Flags().BoolVar(&gpuDetectForce, "force", false, "Re-probe even when the cached profile is still fresh")
	return cmd
}

func newGPUShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cached hardware encoder profile",
		RunE:  runGPUShow,
	}
}

func newGPUResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the cached profile so the next run re-probes",
		RunE:  runGPUReset,
	}
}

func runGPUDetect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pp, err := resolvePaths()
	if err != nil {
		return err
	}
	if err := pp.EnsureDirs(); err != nil {
		return err
	}

	if !gpuDetectForce {
		cfg, loaded, err := gpu.Load(pp.GPUProfileFile)
		if err == nil && loaded && cfg.IsFresh(time.Now()) {
			return writeGPUProfile(cmd, cfg)
		}
	}

	logger, closer, _, err := logx.New(pp.LogsDir)
	if err != nil {
		return err
	}
	defer closer.Close()

	ts, err := tools.Locate(pp)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var status *tui.StatusWriter
	if tui.DetectMode(out, noProgress, outputJSON) == tui.ModeTUI {
		status = tui.NewStatusWriter(out, "probing hardware encoders")
	}

	detector := gpu.Detector{Runner: execx.CmdRunner{}, FFmpeg: ts.FFmpeg, Log: logger}
	cfg, err := detector.Detect(ctx)
	if status != nil {
		status.Stop()
	}
	if err != nil {
		return fmt.Errorf("detect hardware encoders: %w", err)
	}

	if err := cfg.Save(pp.GPUProfileFile); err != nil {
		return fmt.Errorf("save gpu profile: %w", err)
	}
	return writeGPUProfile(cmd, cfg)
}

func runGPUShow(cmd *cobra.Command, _ []string) error {
	pp, err := resolvePaths()
	if err != nil {
		return err
	}
	cfg, loaded, err := gpu.Load(pp.GPUProfileFile)
	if err != nil {
		return err
	}
	if !loaded {
		if outputJSON {
			fmt.Fprintln(cmd.OutOrStdout(), "{}")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "no cached profile; run `videomix gpu detect`")
		return nil
	}
	return writeGPUProfile(cmd, cfg)
}

func runGPUReset(cmd *cobra.Command, _ []string) error {
	pp, err := resolvePaths()
	if err != nil {
		return err
	}
	if err := gpu.Delete(pp.GPUProfileFile); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cached profile deleted; the next compose run will re-probe")
	return nil
}

func writeGPUProfile(cmd *cobra.Command, cfg gpu.Config) error {
	out := cmd.OutOrStdout()
	if outputJSON {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("encode gpu profile: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "encoder:        %s\n", cfg.Encoder)
	fmt.Fprintf(out, "hardware:       %s\n", onOffWord(cfg.UseHardwareAcceleration))
	if cfg.DetectedGPU != "" {
		fmt.Fprintf(out, "gpu:            %s\n", cfg.DetectedGPU)
	}
	if cfg.DetectedVendor != "" {
		fmt.Fprintf(out, "vendor:         %s\n", cfg.DetectedVendor)
	}
	if cfg.DriverVersion != "" {
		fmt.Fprintf(out, "driver:         %s\n", cfg.DriverVersion)
	}
	fmt.Fprintf(out, "preset:         %s\n", cfg.EncodingPreset)
	fmt.Fprintf(out, "compat mode:    %s\n", onOffWord(cfg.CompatibilityMode))
	if !cfg.DetectedAt.IsZero() {
		freshness := "stale"
		if cfg.IsFresh(time.Now()) {
			freshness = "fresh"
		}
		fmt.Fprintf(out, "detected:       %s (%s)\n", cfg.DetectedAt.Format(time.RFC3339), freshness)
	}
	return nil
}

func onOffWord(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
