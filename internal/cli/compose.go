package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"videomix/internal/batch"
	"videomix/internal/config"
	"videomix/internal/execx"
	"videomix/internal/gpu"
	"videomix/internal/logx"
	"videomix/internal/material"
	"videomix/internal/paths"
	"videomix/internal/tools"
	"videomix/internal/tui"
)

var (
	composeOutputDir     string
	composeCount         int
	composeBGM           string
	composeExtractMode   string
	composeTransition    string
	composeTransitionSec float64
	composeWatermark     bool
	composeNameTemplate  string
	composeSeed          int64
)

func newComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose [material-folder...]",
		Short: "Scan material folders and render mixed outputs",
		Long: "Compose scans each material folder for scene directories holding " +
			"视频 (video) and 配音 (narration) subfolders, selects clips to match " +
			"each narration, joins the scenes with transitions and renders the " +
			"requested number of randomized outputs.",
		Args: cobra.MinimumNArgs(1),
		RunE: runCompose,
	}

	cmd.Flags().StringVarP(&composeOutputDir, "output", "o", "output", "Directory for finished videos")
	cmd.Flags().IntVarP(&composeCount, "count", "n", 0, "Outputs to produce (default from settings)")
	cmd.Flags().StringVar(&composeBGM, "bgm", "", "Background music file mixed under every output")
	cmd.Flags().StringVar(&composeExtractMode, "extract-mode", config.ExtractSingle, "Clip extraction per scene: single_video or multi_video")
	cmd.Flags().StringVar(&composeTransition, "transition", "", "Transition override (none, random or an effect name)")
	cmd.Flags().Float64Var(&composeTransitionSec, "transition-duration", 0, "Transition duration override in seconds")
	cmd.Flags().BoolVar(&composeWatermark, "watermark", false, "Toggle the timestamp watermark pass")
	cmd.Flags().StringVar(&composeNameTemplate, "name-template", "", "Output name template, e.g. mix_{index} or {date}_{time}")
	cmd.Flags().Int64Var(&composeSeed, "seed", 0, "Random seed for reproducible selection (0 picks one)")

	return cmd
}

func runCompose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if composeExtractMode != config.ExtractSingle && composeExtractMode != config.ExtractMulti {
		return fmt.Errorf("extract-mode must be %q or %q", config.ExtractSingle, config.ExtractMulti)
	}

	pp, settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := pp.EnsureDirs(); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("transition") {
		settings.Transition.Name = composeTransition
	}
	if flags.Changed("transition-duration") {
		settings.Transition.DurationSec = composeTransitionSec
	}
	if flags.Changed("watermark") {
		settings.Watermark.Enabled = composeWatermark
	}
	if flags.Changed("name-template") {
		settings.Output.NameTemplate = composeNameTemplate
	}
	count := composeCount
	if count <= 0 {
		count = settings.Output.Count
	}

	if findings := settings.Validate(); config.HasErrors(findings) {
		var msgs []string
		for _, f := range findings {
			if f.Level == "error" {
				msgs = append(msgs, f.Message)
			}
		}
		return fmt.Errorf("invalid settings: %s", joinComma(msgs))
	}

	if composeBGM != "" {
		if ok, err := paths.FileExists(composeBGM); err != nil || !ok {
			return fmt.Errorf("bgm file not found: %s", composeBGM)
		}
	}

	logger, closer, logPath, err := logx.New(pp.LogsDir)
	if err != nil {
		return err
	}
	defer closer.Close()

	ts, err := tools.Locate(pp)
	if err != nil {
		return err
	}

	runner := execx.CmdRunner{}
	gpuCfg := resolveGPUProfile(ctx, runner, ts.FFmpeg, pp, settings, logger)

	seed := composeSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info().
		Int64("seed", seed).
		Int("count", count).
		Str("output_dir", composeOutputDir).
		Str("encoder", gpuCfg.Encoder).
		Msg("compose starting")

	folders := make([]material.Folder, 0, len(args))
	for _, dir := range args {
		folders = append(folders, material.Folder{Path: dir, ExtractMode: composeExtractMode})
	}

	orch := &batch.Orchestrator{
		Runner:    runner,
		FFmpeg:    ts.FFmpeg,
		FFprobe:   ts.FFprobe,
		Settings:  settings,
		GPU:       gpuCfg,
		CachePath: pp.ProbeIndexFile,
		TempDir:   pp.TempDir,
		Rand:      rand.New(rand.NewSource(seed)),
		Log:       logger,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First interrupt stops cooperatively; a second one aborts.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			orch.Stop()
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()

	out := cmd.OutOrStdout()
	mode := tui.DetectMode(out, noProgress, outputJSON)

	var result batch.Result
	var runErr error
	switch mode {
	case tui.ModeTUI:
		title := fmt.Sprintf("composing %d output(s) into %s", count, composeOutputDir)
		runErr = tui.RunWithWork(out, tui.NewComposeModel(title, orch.Stop), func(send func(tea.Msg)) error {
			var procErr error
			result, procErr = orch.Process(ctx, folders, composeOutputDir, count, composeBGM, tui.ProgressSink(send))
			return procErr
		})
	case tui.ModePlain:
		result, runErr = orch.Process(ctx, folders, composeOutputDir, count, composeBGM, tui.PlainSink(out))
	default:
		result, runErr = orch.Process(ctx, folders, composeOutputDir, count, composeBGM, nil)
	}

	if outputJSON {
		if err := writeComposeJSON(cmd, result, runErr, logPath); err != nil {
			return err
		}
		if runErr != nil && !errors.Is(runErr, batch.ErrInterrupted) {
			return runErr
		}
		return nil
	}

	writeComposeSummary(out, cmd.ErrOrStderr(), result, runErr, logPath)
	if runErr != nil && !errors.Is(runErr, batch.ErrInterrupted) {
		return runErr
	}
	return nil
}

// resolveGPUProfile returns a usable encoder profile: software when
// hardware is disabled, the cached profile while fresh, otherwise a
// fresh detection persisted for next time.
func resolveGPUProfile(ctx context.Context, runner execx.Runner, ffmpeg string, pp paths.ToolPaths, settings config.Settings, log zerolog.Logger) gpu.Config {
	if settings.Encode.HardwareAccel == config.HardwareNone {
		return gpu.DefaultConfig()
	}

	cfg, loaded, err := gpu.Load(pp.GPUProfileFile)
	if err != nil {
		log.Warn().Err(err).Msg("gpu profile unreadable, re-detecting")
	}
	if loaded && cfg.IsFresh(time.Now()) {
		return applyEncoderOverride(cfg, settings)
	}

	detector := gpu.Detector{Runner: runner, FFmpeg: ffmpeg, Log: log}
	detected, err := detector.Detect(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("gpu detection failed, using software encoding")
		return gpu.DefaultConfig()
	}
	if err := detected.Save(pp.GPUProfileFile); err != nil {
		log.Warn().Str("path", pp.GPUProfileFile).Err(err).Msg("gpu profile not saved")
	}
	return applyEncoderOverride(detected, settings)
}

// applyEncoderOverride honors an explicit encoder choice in settings
// over the detected one.
func applyEncoderOverride(cfg gpu.Config, settings config.Settings) gpu.Config {
	switch settings.Encode.Encoder {
	case "", cfg.Encoder:
		return cfg
	case gpu.EncoderSoftware:
		cfg.UseHardwareAcceleration = false
		cfg.Encoder = gpu.EncoderSoftware
	case gpu.EncoderNVENC, gpu.EncoderQSV, gpu.EncoderAMF:
		cfg.UseHardwareAcceleration = true
		cfg.Encoder = settings.Encode.Encoder
	}
	return cfg
}

func writeComposeSummary(out, errOut io.Writer, result batch.Result, runErr error, logPath string) {
	switch {
	case errors.Is(runErr, batch.ErrInterrupted):
		fmt.Fprintf(out, "batch stopped early: %d output(s) finished before the stop\n", len(result.Produced))
	case runErr != nil:
		fmt.Fprintf(errOut, "batch failed: %v\n", runErr)
	default:
		fmt.Fprintf(out, "batch complete in %s: %d output(s)\n", result.Elapsed, len(result.Produced))
	}

	for _, rec := range result.Outputs {
		if rec.Err != nil {
			fmt.Fprintf(errOut, "output %03d failed: %v\n", rec.Index, rec.Err)
			continue
		}
		fmt.Fprintf(out, "output %03d → %s (%.1fs, %s)\n", rec.Index, rec.Path, rec.Duration, rec.Strategy)
		for _, skip := range rec.Skipped {
			fmt.Fprintf(errOut, "  scene %s skipped: %s\n", skip.Key, skip.Reason)
		}
	}

	if logPath != "" {
		fmt.Fprintf(out, "log: %s\n", logPath)
	}
}

type composeJSONSkip struct {
	Scene  string `json:"scene"`
	Reason string `json:"reason"`
}

type composeJSONOutput struct {
	Index         int               `json:"index"`
	Path          string            `json:"path,omitempty"`
	Strategy      string            `json:"strategy,omitempty"`
	DurationSec   float64           `json:"duration_s,omitempty"`
	Watermarked   bool              `json:"watermarked,omitempty"`
	SkippedScenes []composeJSONSkip `json:"skipped_scenes,omitempty"`
	Error         string            `json:"error,omitempty"`
}

func writeComposeJSON(cmd *cobra.Command, result batch.Result, runErr error, logPath string) error {
	payload := struct {
		State    string              `json:"state"`
		Elapsed  string              `json:"elapsed"`
		LogPath  string              `json:"log_path,omitempty"`
		Produced []string            `json:"produced"`
		Outputs  []composeJSONOutput `json:"outputs"`
		Error    string              `json:"error,omitempty"`
	}{
		State:    string(result.State),
		Elapsed:  result.Elapsed,
		LogPath:  logPath,
		Produced: result.Produced,
		Outputs:  make([]composeJSONOutput, 0, len(result.Outputs)),
		Error:    errorString(runErr),
	}
	if payload.Produced == nil {
		payload.Produced = []string{}
	}

	for _, rec := range result.Outputs {
		jsonRec := composeJSONOutput{
			Index:       rec.Index,
			Strategy:    rec.Strategy,
			DurationSec: rec.Duration,
			Watermarked: rec.Watermarked,
			Error:       errorString(rec.Err),
		}
		if rec.Err == nil {
			jsonRec.Path = rec.Path
		}
		for _, skip := range rec.Skipped {
			jsonRec.SkippedScenes = append(jsonRec.SkippedScenes, composeJSONSkip{Scene: skip.Key, Reason: skip.Reason})
		}
		payload.Outputs = append(payload.Outputs, jsonRec)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode compose json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
