package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"videomix/internal/config"
	"videomix/internal/execx"
	"videomix/internal/logx"
	"videomix/internal/material"
	"videomix/internal/plan"
	"videomix/internal/tools"
	"videomix/internal/tui"
)

var scanExtractMode string

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [material-folder...]",
		Short: "Scan material folders and list the scenes a compose run would use",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScan,
	}
	cmd.Flags().StringVar(&scanExtractMode, "extract-mode", config.ExtractSingle, "Clip extraction per scene: single_video or multi_video")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if scanExtractMode != config.ExtractSingle && scanExtractMode != config.ExtractMulti {
		return fmt.Errorf("extract-mode must be %q or %q", config.ExtractSingle, config.ExtractMulti)
	}

	pp, settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := pp.EnsureDirs(); err != nil {
		return err
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

	cache, err := material.LoadIndex(pp.ProbeIndexFile)
	if err != nil {
		logger.Warn().Err(err).Msg("probe cache unreadable, rebuilding")
	}

	scanner := &material.Scanner{
		Prober: material.Prober{Runner: execx.CmdRunner{}, FFprobe: ts.FFprobe, Log: logger},
		Cache:  cache,
		Log:    logger,
	}

	folders := make([]material.Folder, 0, len(args))
	for _, dir := range args {
		folders = append(folders, material.Folder{Path: dir, ExtractMode: scanExtractMode})
	}

	out := cmd.OutOrStdout()
	var status *tui.StatusWriter
	if tui.DetectMode(out, noProgress, outputJSON) == tui.ModeTUI {
		status = tui.NewStatusWriter(out, "scanning material")
	}
	progress := func(message string, _ float64) {
		if status != nil {
			status.Update(message)
		}
	}

	scenes, err := scanner.Scan(ctx, folders, progress)
	if status != nil {
		status.Stop()
	}
	if err != nil {
		return err
	}
	if err := material.SaveIndex(pp.ProbeIndexFile, cache); err != nil {
		logger.Warn().Err(err).Msg("probe cache not saved")
	}

	sorted := material.SortedScenes(scenes)
	if outputJSON {
		return writeScanJSON(cmd, sorted, settings.Output.SceneDurationSec)
	}
	return writeScanTable(cmd, sorted, settings.Output.SceneDurationSec)
}

func writeScanTable(cmd *cobra.Command, scenes []material.Scene, defaultSceneSec float64) error {
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCENE\tCLIPS\tNARRATION\tTARGET")
	for _, scene := range scenes {
		narration := "-"
		if scene.HasNarration() {
			narration = fmt.Sprintf("%.1fs", scene.Audios[0].Duration)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%.1fs\n",
			scene.Key,
			len(scene.Videos),
			narration,
			plan.TargetDuration(scene, defaultSceneSec),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d scene(s)\n", len(scenes))
	return nil
}

type scanJSONScene struct {
	Key          string  `json:"key"`
	SegmentIndex int     `json:"segment_index"`
	Clips        int     `json:"clips"`
	HasNarration bool    `json:"has_narration"`
	NarrationSec float64 `json:"narration_s,omitempty"`
	TargetSec    float64 `json:"target_s"`
	ExtractMode  string  `json:"extract_mode"`
}

func writeScanJSON(cmd *cobra.Command, scenes []material.Scene, defaultSceneSec float64) error {
	payload := struct {
		Scenes []scanJSONScene `json:"scenes"`
		Count  int             `json:"count"`
	}{
		Scenes: make([]scanJSONScene, 0, len(scenes)),
		Count:  len(scenes),
	}
	for _, scene := range scenes {
		entry := scanJSONScene{
			Key:          scene.Key,
			SegmentIndex: scene.SegmentIndex,
			Clips:        len(scene.Videos),
			HasNarration: scene.HasNarration(),
			TargetSec:    plan.TargetDuration(scene, defaultSceneSec),
			ExtractMode:  scene.ExtractMode,
		}
		if scene.HasNarration() {
			entry.NarrationSec = scene.Audios[0].Duration
		}
		payload.Scenes = append(payload.Scenes, entry)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scan json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
