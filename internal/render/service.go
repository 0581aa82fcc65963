// Package render materializes planned selections into finished videos
// through ffmpeg: per-scene merge, transition composite, final encode
// through the hardware strategy ladder, and the optional watermark
// pass.
package render

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videomix/internal/config"
	"videomix/internal/execx"
	"videomix/internal/gpu"
	"videomix/internal/plan"
	"videomix/pkg/mediainfo"
)

// Stage names reported through Job.OnProgress.
const (
	StageMerge     = "merge"
	StageEncode    = "encode"
	StageWatermark = "watermark"
)

// Job describes one output video to render.
type Job struct {
	Selections         []plan.Selection
	Transition         string
	TransitionDuration float64
	OutputPath         string
	BGMPath            string
	WatermarkText      string
	OnProgress         func(stage string, fraction float64)
}

// Result reports what a render produced.
type Result struct {
	OutputPath  string
	Strategy    string
	Duration    float64
	Watermarked bool
}

// Pipeline renders jobs. One job is a transaction: it yields a
// validated output file or none; intermediates live under TempDir and
// are removed when the job finishes either way.
type Pipeline struct {
	Runner   execx.Runner
	FFmpeg   string
	FFprobe  string
	GPU      gpu.Config
	Settings config.Settings
	TempDir  string
	Rand     *rand.Rand
	Log      zerolog.Logger
}

// Render runs the full pipeline for one output.
func (p *Pipeline) Render(ctx context.Context, job Job) (Result, error) {
	if len(job.Selections) == 0 {
		return Result{}, errors.New("job has no selections")
	}
	if job.Transition == "" {
		job.Transition = TransitionNone
	}
	if err := os.MkdirAll(p.TempDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("prepare temp dir: %w", err)
	}

	var temps []string
	defer func() {
		for _, f := range temps {
			os.Remove(f)
		}
	}()

	emit := func(stage string, frac float64) {
		if job.OnProgress != nil {
			job.OnProgress(stage, clampFloat(frac, 0, 1))
		}
	}

	scenes := make([]SceneClip, 0, len(job.Selections))
	for i, sel := range job.Selections {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		scenePath := filepath.Join(p.TempDir, fmt.Sprintf("scene_%s.mp4", uuid.NewString()))
		temps = append(temps, scenePath)

		if err := p.mergeScene(ctx, sel, scenePath); err != nil {
			return Result{}, fmt.Errorf("merge scene %s: %w", sel.FolderKey, err)
		}
		info, err := p.probeFile(ctx, scenePath)
		if err != nil {
			return Result{}, fmt.Errorf("merged scene %s unreadable: %w", sel.FolderKey, err)
		}
		scenes = append(scenes, SceneClip{Path: scenePath, Duration: info.Duration})
		emit(StageMerge, float64(i+1)/float64(len(job.Selections)))
	}

	compositePath := filepath.Join(p.TempDir, fmt.Sprintf("composite_%s.mp4", uuid.NewString()))
	temps = append(temps, compositePath)

	var compositeDuration float64
	if job.Transition == TransitionNone {
		listPath := filepath.Join(p.TempDir, fmt.Sprintf("concat_%s.txt", uuid.NewString()))
		temps = append(temps, listPath)

		paths := make([]string, len(scenes))
		for i, sc := range scenes {
			paths[i] = sc.Path
			compositeDuration += sc.Duration
		}
		if err := WriteConcatList(listPath, paths); err != nil {
			return Result{}, err
		}
		res, err := RunConcat(ctx, p.Runner, p.FFmpeg, listPath, compositePath)
		if err != nil {
			return Result{}, fmt.Errorf("concat scenes: %w", err)
		}
		p.Log.Debug().Str("method", res.Method).Msg("scene concat complete")
		emit(StageEncode, 0.5)
	} else {
		width, height := p.Settings.Video.Dimensions()
		spec, err := BuildComposite(scenes, job.Transition, job.TransitionDuration, p.Rand, width, height)
		if err != nil {
			return Result{}, err
		}
		compositeDuration = spec.Duration

		if err := p.renderComposite(ctx, scenes, spec, compositePath, func(frac float64) {
			emit(StageEncode, 0.5*frac)
		}); err != nil {
			return Result{}, fmt.Errorf("render composite: %w", err)
		}
	}

	strategy, err := p.encodeFinal(ctx, compositePath, compositeDuration, job, func(frac float64) {
		emit(StageEncode, 0.5+0.5*frac)
	})
	if err != nil {
		return Result{}, err
	}

	watermarked := false
	if p.Settings.Watermark.Enabled && job.WatermarkText != "" {
		if err := p.applyWatermark(ctx, job, strategy.VideoArgs); err != nil {
			if ctx.Err() != nil {
				os.Remove(job.OutputPath)
				return Result{}, ctx.Err()
			}
			p.Log.Warn().Str("output", job.OutputPath).Err(err).Msg("watermark pass failed, keeping unwatermarked output")
		} else {
			watermarked = true
		}
	}
	emit(StageWatermark, 1)

	return Result{
		OutputPath:  job.OutputPath,
		Strategy:    strategy.Name,
		Duration:    compositeDuration,
		Watermarked: watermarked,
	}, nil
}

func (p *Pipeline) mergeScene(ctx context.Context, sel plan.Selection, outputPath string) error {
	args := buildMergeArgs(sel, p.Settings, outputPath)
	res, err := p.Runner.Run(ctx, p.FFmpeg, args, execx.RunOptions{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("ffmpeg merge exited %d: %s", res.ExitCode, tailOf(res.Stderr))
	}
	return nil
}

// renderComposite is stage one of the two-stage path: the transition
// filtergraph rendered to an intermediate. A hardware encoder is tried
// first when the profile has one; the ultrafast software pass is the
// reliable fallback.
func (p *Pipeline) renderComposite(ctx context.Context, scenes []SceneClip, spec CompositeSpec, outputPath string, onFrac func(float64)) error {
	base := []string{"-hide_banner", "-y"}
	for _, sc := range scenes {
		base = append(base, "-i", sc.Path)
	}
	base = append(base,
		"-filter_complex", spec.FilterComplex,
		"-map", "["+spec.VideoLabel+"]",
		"-map", "["+spec.AudioLabel+"]",
	)

	type attempt struct {
		name string
		args []string
	}
	var attempts []attempt
	if p.GPU.HardwareEligible() {
		hw := append([]string{}, base...)
		hw = append(hw, "-c:v", p.GPU.Encoder, "-b:v", fmt.Sprintf("%dk", p.Settings.Video.BitrateKbps))
		hw = append(hw, "-c:a", "aac", "-b:a", "192k", outputPath)
		attempts = append(attempts, attempt{name: p.GPU.Encoder, args: hw})
	}
	sw := append([]string{}, base...)
	sw = append(sw, "-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p")
	sw = append(sw, "-c:a", "aac", "-b:a", "192k", outputPath)
	attempts = append(attempts, attempt{name: "libx264/ultrafast", args: sw})

	var lastErr error
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.runMonitored(ctx, a.args, spec.Duration, onFrac)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		os.Remove(outputPath)
		p.Log.Warn().Str("encoder", a.name).Err(err).Msg("composite pass failed, trying fallback")
	}
	return lastErr
}

// encodeFinal is stage two: the intermediate re-encoded with final
// target parameters, walking the strategy ladder until an attempt
// produces a validated file. Partial outputs never survive a failed
// attempt.
func (p *Pipeline) encodeFinal(ctx context.Context, compositePath string, duration float64, job Job, onFrac func(float64)) (gpu.Strategy, error) {
	params := gpu.EncodeParams{
		BitrateKbps: p.Settings.Video.BitrateKbps,
		FPS:         p.Settings.Video.FPS,
		Preset:      p.Settings.Encode.Preset,
	}

	var lastErr error
	for _, strat := range p.GPU.Strategies(params) {
		if err := ctx.Err(); err != nil {
			return gpu.Strategy{}, err
		}

		args := p.buildFinalArgs(compositePath, job, strat, duration)
		p.Log.Info().
			Str("strategy", strat.Name).
			Str("encoder", strat.Encoder).
			Str("output", job.OutputPath).
			Msg("encoding output")

		err := p.runMonitored(ctx, args, duration, onFrac)
		if err == nil {
			err = p.validateOutput(ctx, job.OutputPath)
			if err == nil {
				return strat, nil
			}
		}
		if ctx.Err() != nil {
			os.Remove(job.OutputPath)
			return gpu.Strategy{}, ctx.Err()
		}

		lastErr = err
		os.Remove(job.OutputPath)
		p.Log.Warn().Str("strategy", strat.Name).Err(err).Msg("encode attempt failed")
	}
	return gpu.Strategy{}, fmt.Errorf("all encode strategies failed: %w", lastErr)
}

func (p *Pipeline) buildFinalArgs(compositePath string, job Job, strat gpu.Strategy, duration float64) []string {
	args := []string{"-hide_banner", "-y", "-i", compositePath}
	if job.BGMPath != "" {
		graph, outLabel := BuildBGMMixGraph(duration, p.Settings.Audio.BGMVolume)
		args = append(args,
			"-i", job.BGMPath,
			"-filter_complex", graph,
			"-map", "0:v",
			"-map", "["+outLabel+"]",
		)
	} else {
		args = append(args, "-map", "0:v", "-map", "0:a")
	}
	args = append(args, strat.VideoArgs...)
	args = append(args, gpu.AudioArgs()...)
	args = append(args, "-movflags", "+faststart", job.OutputPath)
	return args
}

// runMonitored executes ffmpeg with progress reporting wired to
// stderr and a watchdog covering encoder silence.
func (p *Pipeline) runMonitored(ctx context.Context, args []string, total float64, onFrac func(float64)) error {
	watcher := newProgressWatcher(total, func(frac float64, st Status) {
		if onFrac != nil {
			onFrac(frac)
		}
	})

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watcher.watch(wctx)

	full := append([]string{"-progress", "pipe:2"}, args...)
	res, err := p.Runner.Run(ctx, p.FFmpeg, full, execx.RunOptions{Stderr: watcher})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("ffmpeg exited %d: %s", res.ExitCode, tailOf(res.Stderr))
	}
	return nil
}

// validateOutput confirms an encode produced a playable file: present,
// non-empty, with a video stream and a duration.
func (p *Pipeline) validateOutput(ctx context.Context, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if fi.Size() == 0 {
		return errors.New("output file is empty")
	}

	info, err := p.probeFile(ctx, path)
	if err != nil {
		return fmt.Errorf("output not probeable: %w", err)
	}
	if !info.HasVideo() {
		return errors.New("output has no video stream")
	}
	if info.Duration <= 0 {
		return errors.New("output has no duration")
	}
	return nil
}

func (p *Pipeline) probeFile(ctx context.Context, path string) (mediainfo.Info, error) {
	args := []string{
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		path,
	}
	res, err := p.Runner.Run(ctx, p.FFprobe, args, execx.RunOptions{})
	if err != nil {
		return mediainfo.Info{}, err
	}
	if res.ExitCode != 0 {
		return mediainfo.Info{}, fmt.Errorf("ffprobe exited %d: %s", res.ExitCode, tailOf(res.Stderr))
	}
	return mediainfo.Parse(res.Stdout)
}

func (p *Pipeline) applyWatermark(ctx context.Context, job Job, videoArgs []string) error {
	tmp := filepath.Join(p.TempDir, fmt.Sprintf("wm_%s.mp4", uuid.NewString()))
	args := buildWatermarkArgs(job.OutputPath, tmp, job.WatermarkText, p.Settings.Watermark, videoArgs)

	res, err := p.Runner.Run(ctx, p.FFmpeg, args, execx.RunOptions{})
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if res.ExitCode != 0 {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg watermark exited %d: %s", res.ExitCode, tailOf(res.Stderr))
	}

	if err := os.Rename(tmp, job.OutputPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace output with watermarked file: %w", err)
	}
	return nil
}
