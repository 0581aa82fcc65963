package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"videomix/internal/config"
	"videomix/internal/gpu"
	"videomix/internal/paths"
	"videomix/internal/tools"
	"videomix/internal/tui"
)

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warn", or "error"
	Summary string `json:"summary"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check tools, settings, and directories a compose run needs",
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pp, err := resolvePaths()
	if err != nil {
		return err
	}
	checks := []healthCheck{
		checkTools(ctx, pp),
		checkSettings(),
		checkGPUProfile(pp),
		checkDirectory("global dir", pp.GlobalDir),
		checkDirectory("temp dir", pp.TempDir),
	}
	return writeDoctorResult(cmd, checks)
}

func checkTools(ctx context.Context, pp paths.ToolPaths) healthCheck {
	probed := tools.Probe(ctx, pp)

	ffmpeg := probed["ffmpeg"]
	ffprobe := probed["ffprobe"]
	smi := probed["nvidia-smi"]

	if !ffmpeg.Available || !ffprobe.Available {
		var missing []string
		if !ffmpeg.Available {
			missing = append(missing, "ffmpeg")
		}
		if !ffprobe.Available {
			missing = append(missing, "ffprobe")
		}
		return healthCheck{Name: "tools", Status: "error", Summary: fmt.Sprintf("%s not found; install FFmpeg or point %s at it", joinComma(missing), pp.FFmpegPathFile)}
	}

	summary := fmt.Sprintf("ffmpeg %s (%s), ffprobe %s", ffmpeg.Version, ffmpeg.Source, ffprobe.Version)
	if smi.Available {
		summary += ", nvidia-smi present"
	}
	return healthCheck{Name: "tools", Status: "ok", Summary: summary}
}

func checkSettings() healthCheck {
	_, settings, err := loadSettings()
	if err != nil {
		return healthCheck{Name: "settings", Status: "error", Summary: err.Error()}
	}
	findings := settings.Validate()
	if config.HasErrors(findings) {
		n := 0
		for _, f := range findings {
			if f.Level == "error" {
				n++
			}
		}
		return healthCheck{Name: "settings", Status: "error", Summary: fmt.Sprintf("%d error(s); run `videomix settings validate`", n)}
	}
	if len(findings) > 0 {
		return healthCheck{Name: "settings", Status: "warn", Summary: fmt.Sprintf("%d warning(s); run `videomix settings validate`", len(findings))}
	}
	return healthCheck{Name: "settings", Status: "ok", Summary: fmt.Sprintf("%s, %dk, %s transition", settings.Video.Resolution, settings.Video.BitrateKbps, settings.Transition.Name)}
}

func checkGPUProfile(pp paths.ToolPaths) healthCheck {
	cfg, loaded, err := gpu.Load(pp.GPUProfileFile)
	if err != nil {
		return healthCheck{Name: "gpu profile", Status: "warn", Summary: fmt.Sprintf("unreadable (%v); run `videomix gpu detect`", err)}
	}
	if !loaded {
		return healthCheck{Name: "gpu profile", Status: "warn", Summary: "not cached yet; the first compose run will probe"}
	}
	if !cfg.IsFresh(time.Now()) {
		return healthCheck{Name: "gpu profile", Status: "warn", Summary: fmt.Sprintf("%s cached but stale; the next compose run will re-probe", cfg.Encoder)}
	}
	return healthCheck{Name: "gpu profile", Status: "ok", Summary: fmt.Sprintf("%s (hardware %s)", cfg.Encoder, onOffWord(cfg.UseHardwareAcceleration))}
}

func checkDirectory(name, dir string) healthCheck {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return healthCheck{Name: name, Status: "error", Summary: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".doctor_probe_*")
	if err != nil {
		return healthCheck{Name: name, Status: "error", Summary: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	probe.Close()
	os.Remove(probe.Name())
	return healthCheck{Name: name, Status: "ok", Summary: dir}
}

func writeDoctorResult(cmd *cobra.Command, checks []healthCheck) error {
	failed := false
	for _, c := range checks {
		if c.Status == "error" {
			failed = true
		}
	}

	if outputJSON {
		payload := struct {
			Healthy bool          `json:"healthy"`
			Checks  []healthCheck `json:"checks"`
		}{Healthy: !failed, Checks: checks}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode doctor result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		if failed {
			return fmt.Errorf("doctor found problems")
		}
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tui.TitleStyle.Render("videomix doctor"))
	for _, c := range checks {
		label := map[string]string{"ok": "OK   ", "warn": "WARN ", "error": "ERROR"}[c.Status]
		style := map[string]string{"ok": "done", "warn": "stopping", "error": "error"}[c.Status]
		fmt.Fprintf(out, "%s %-12s %s\n", tui.StatusStyle(style).Render(label), c.Name, c.Summary)
	}
	if failed {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}
