// Package batch drives whole runs end to end: validate the inputs,
// scan the material once, then select, render and validate each output
// in sequence. Failures are absorbed per output; only an unusable
// material set or a run with zero successes fails the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"videomix/internal/config"
	"videomix/internal/execx"
	"videomix/internal/gpu"
	"videomix/internal/material"
	"videomix/internal/plan"
	"videomix/internal/render"
)

// Share of one output's progress slice spent in each stage.
const (
	shareSelection = 0.10
	shareMerge     = 0.30
	shareEncode    = 0.55
	shareWatermark = 0.05
)

// scanShare is the slice of overall progress the scan occupies; the
// remaining budget up to 100 is split evenly across outputs.
const scanShare = 5.0

// ProgressFunc receives human-readable progress messages with an
// overall percentage in [0,100]. Messages carry the elapsed run time.
type ProgressFunc func(message string, percent float64)

// OutputRecord reports one output's outcome. Err is nil on success.
type OutputRecord struct {
	Index       int
	Path        string
	Strategy    string
	Duration    float64
	Watermarked bool
	Skipped     []SceneSkipped
	Err         error
}

// Result summarizes a batch run.
type Result struct {
	State    State
	Outputs  []OutputRecord
	Produced []string
	Elapsed  string
}

// Orchestrator runs batches. Configure the fields once, then call
// Process; Stop may be called from another goroutine to end the run
// early. A single Orchestrator runs one batch at a time.
type Orchestrator struct {
	Runner    execx.Runner
	FFmpeg    string
	FFprobe   string
	Settings  config.Settings
	GPU       gpu.Config
	CachePath string
	TempDir   string
	Rand      *rand.Rand
	Log       zerolog.Logger

	stamper render.Stamper

	mu     sync.Mutex
	cancel context.CancelFunc
	state  State
}

// State returns the current run phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == "" {
		return StateInit
	}
	return o.state
}

// setState advances the phase unless a stop is already in flight; the
// cooperative unwind owns the transition to Stopped.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateStopping && !s.Terminal() {
		return
	}
	o.state = s
}

// Stop cancels the running batch. The run unwinds cooperatively and
// Process returns ErrInterrupted with the partial result.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil && !o.state.Terminal() {
		o.state = StateStopping
		o.cancel()
	}
}

// Process runs one batch: scan the material folders, then produce
// count outputs under outputDir. bgmPath optionally names a music bed
// mixed under every output.
func (o *Orchestrator) Process(ctx context.Context, folders []material.Folder, outputDir string, count int, bgmPath string, sink ProgressFunc) (Result, error) {
	if sink == nil {
		sink = func(string, float64) {}
	}
	if count <= 0 {
		count = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.cancel = cancel
	o.state = StateInit
	o.mu.Unlock()

	started := time.Now()

	// The encode watchdog re-emits from its own goroutine; serialize
	// sink calls and keep the reported percentage monotonic.
	var progressMu sync.Mutex
	lastPct := 0.0
	emit := func(message string, pct float64) {
		progressMu.Lock()
		defer progressMu.Unlock()
		if pct < lastPct {
			pct = lastPct
		} else {
			lastPct = pct
		}
		sink(fmt.Sprintf("[%s] %s", formatElapsed(time.Since(started)), message), pct)
	}

	if err := o.validate(folders, outputDir); err != nil {
		return o.fail(nil, started), err
	}

	o.setState(StateScanning)
	emit("scanning material folders", 0)

	cache := o.loadCache()
	scanner := &material.Scanner{
		Prober: material.Prober{Runner: o.Runner, FFprobe: o.FFprobe, Log: o.Log},
		Cache:  cache,
		Log:    o.Log,
	}
	sceneMap, err := scanner.Scan(ctx, folders, material.ProgressFunc(emit))
	if err != nil {
		if ctx.Err() != nil {
			return o.stopped(nil, started, emit)
		}
		return o.fail(nil, started), &MaterialError{Err: err}
	}
	o.saveCache(cache)

	scenes := material.SortedScenes(sceneMap)
	emit(fmt.Sprintf("found %d scenes", len(scenes)), scanShare)

	selector := &plan.Selector{Rand: o.Rand, Log: o.Log}
	pipeline := &render.Pipeline{
		Runner:   o.Runner,
		FFmpeg:   o.FFmpeg,
		FFprobe:  o.FFprobe,
		GPU:      o.GPU,
		Settings: o.Settings,
		TempDir:  o.tempDir(),
		Rand:     o.Rand,
		Log:      o.Log,
	}

	var outputs []OutputRecord
	slice := (100 - scanShare) / float64(count)
	for i := 1; i <= count; i++ {
		if ctx.Err() != nil {
			return o.stopped(outputs, started, emit)
		}

		base := scanShare + slice*float64(i-1)
		rec := o.renderOne(ctx, i, scenes, outputDir, bgmPath, selector, pipeline, base, slice, emit)
		if ctx.Err() != nil {
			return o.stopped(outputs, started, emit)
		}
		if rec.Err != nil {
			o.Log.Error().Int("output", rec.Index).Err(rec.Err).Msg("output failed")
		}
		outputs = append(outputs, rec)
	}

	result := o.summarize(outputs, started)
	if len(result.Produced) == 0 {
		o.setState(StateFailed)
		result.State = StateFailed
		return result, fmt.Errorf("no outputs produced (%d attempted)", count)
	}

	o.setState(StateDone)
	result.State = StateDone
	emit(fmt.Sprintf("batch complete: %d/%d outputs", len(result.Produced), count), 100)
	return result, nil
}

// renderOne builds and renders a single output. Failures are returned
// in the record, never as a batch error.
func (o *Orchestrator) renderOne(ctx context.Context, index int, scenes []material.Scene, outputDir, bgmPath string, selector *plan.Selector, pipeline *render.Pipeline, base, slice float64, emit ProgressFunc) OutputRecord {
	rec := OutputRecord{Index: index}

	o.setState(StateSelecting)
	used := map[string]bool{}
	var selections []plan.Selection
	for si, scene := range scenes {
		if err := ctx.Err(); err != nil {
			rec.Err = err
			return rec
		}

		target := plan.TargetDuration(scene, o.Settings.Output.SceneDurationSec)
		sel, err := selector.Select(scene, target, used)
		if err != nil {
			rec.Skipped = append(rec.Skipped, SceneSkipped{Key: scene.Key, Reason: err.Error()})
			o.Log.Warn().Str("scene", scene.Key).Err(err).Int("output", index).Msg("scene skipped")
			continue
		}
		selections = append(selections, sel)
		emit(fmt.Sprintf("output %d: planned %s", index, scene.Key),
			base+slice*shareSelection*float64(si+1)/float64(len(scenes)))
	}
	if len(selections) == 0 {
		rec.Err = &SelectionError{Output: index, Err: errors.New("no scene yielded a selection")}
		return rec
	}

	outputPath := OutputPath(outputDir, o.Settings.Output.NameTemplate, index, time.Now())
	rec.Path = outputPath

	var watermarkText string
	if o.Settings.Watermark.Enabled {
		watermarkText = o.stamper.Next(o.Settings.Watermark.Prefix)
	}

	job := render.Job{
		Selections:         selections,
		Transition:         o.Settings.Transition.Name,
		TransitionDuration: o.Settings.Transition.DurationSec,
		OutputPath:         outputPath,
		BGMPath:            bgmPath,
		WatermarkText:      watermarkText,
		OnProgress: func(stage string, frac float64) {
			var at float64
			switch stage {
			case render.StageMerge:
				o.setState(StateMerging)
				at = shareSelection + shareMerge*frac
			case render.StageEncode:
				o.setState(StateEncoding)
				at = shareSelection + shareMerge + shareEncode*frac
			case render.StageWatermark:
				o.setState(StateWatermarking)
				at = shareSelection + shareMerge + shareEncode + shareWatermark*frac
			}
			emit(fmt.Sprintf("output %d: %s", index, stage), base+slice*at)
		},
	}

	res, err := pipeline.Render(ctx, job)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			rec.Err = ctxErr
			return rec
		}
		rec.Err = &EncodeError{Path: outputPath, Err: err}
		return rec
	}

	rec.Strategy = res.Strategy
	rec.Duration = res.Duration
	rec.Watermarked = res.Watermarked
	emit(fmt.Sprintf("output %d: finished %s", index, filepath.Base(outputPath)), base+slice)
	return rec
}

// validate checks the material folders and probes the output directory
// for writability before any work starts.
func (o *Orchestrator) validate(folders []material.Folder, outputDir string) error {
	if len(folders) == 0 {
		return &MaterialError{Err: errors.New("no material folders given")}
	}
	for _, f := range folders {
		fi, err := os.Stat(f.Path)
		if err != nil {
			return &MaterialError{Path: f.Path, Err: err}
		}
		if !fi.IsDir() {
			return &MaterialError{Path: f.Path, Err: errors.New("not a directory")}
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return &MaterialError{Path: outputDir, Err: err}
	}
	probe, err := os.CreateTemp(outputDir, ".write_probe_*")
	if err != nil {
		return &MaterialError{Path: outputDir, Err: fmt.Errorf("output dir not writable: %w", err)}
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

func (o *Orchestrator) summarize(outputs []OutputRecord, started time.Time) Result {
	result := Result{
		Outputs: outputs,
		Elapsed: formatElapsed(time.Since(started)),
	}
	for _, rec := range outputs {
		if rec.Err == nil {
			result.Produced = append(result.Produced, rec.Path)
		}
	}
	return result
}

func (o *Orchestrator) fail(outputs []OutputRecord, started time.Time) Result {
	o.setState(StateFailed)
	result := o.summarize(outputs, started)
	result.State = StateFailed
	return result
}

func (o *Orchestrator) stopped(outputs []OutputRecord, started time.Time, emit ProgressFunc) (Result, error) {
	o.mu.Lock()
	o.state = StateStopped
	o.mu.Unlock()

	result := o.summarize(outputs, started)
	result.State = StateStopped
	emit("batch stopped", 0)
	return result, ErrInterrupted
}

func (o *Orchestrator) tempDir() string {
	if o.TempDir != "" {
		return o.TempDir
	}
	if o.Settings.Paths.TempDir != "" {
		return o.Settings.Paths.TempDir
	}
	return filepath.Join(os.TempDir(), "videomix")
}

func (o *Orchestrator) loadCache() *material.Index {
	if o.CachePath == "" {
		return nil
	}
	idx, err := material.LoadIndex(o.CachePath)
	if err != nil {
		o.Log.Warn().Str("path", o.CachePath).Err(err).Msg("probe cache unreadable, rebuilding")
	}
	return idx
}

func (o *Orchestrator) saveCache(idx *material.Index) {
	if o.CachePath == "" || idx == nil {
		return
	}
	if err := material.SaveIndex(o.CachePath, idx); err != nil {
		o.Log.Warn().Str("path", o.CachePath).Err(err).Msg("probe cache not saved")
	}
}

func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
