package batch

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"videomix/internal/config"
	"videomix/internal/execx"
	"videomix/internal/gpu"
	"videomix/internal/material"
)

const videoProbeJSON = `{
  "format": {"format_name": "mov,mp4,m4a", "duration": "4.000000"},
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1080, "height": 1920, "r_frame_rate": "30/1"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac"}
  ]
}`

const audioProbeJSON = `{
  "format": {"format_name": "mp3", "duration": "6.500000"},
  "streams": [
    {"index": 0, "codec_type": "audio", "codec_name": "mp3"}
  ]
}`

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  func(args []string) bool
}

func (f *fakeRunner) Run(ctx context.Context, command string, args []string, opts execx.RunOptions) (execx.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{command}, args...))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return execx.RunResult{ExitCode: -1}, err
	}

	switch filepath.Base(command) {
	case "ffprobe":
		target := args[len(args)-1]
		if strings.HasSuffix(target, ".mp3") {
			return execx.RunResult{Stdout: []byte(audioProbeJSON)}, nil
		}
		return execx.RunResult{Stdout: []byte(videoProbeJSON)}, nil
	default:
		if f.fail != nil && f.fail(args) {
			return execx.RunResult{Stderr: []byte("fake encode failure"), ExitCode: 1}, nil
		}
		if len(args) > 0 {
			if out := args[len(args)-1]; strings.HasSuffix(out, ".mp4") {
				if err := os.WriteFile(out, []byte("fake media"), 0o644); err != nil {
					return execx.RunResult{Stderr: []byte(err.Error()), ExitCode: 1}, nil
				}
			}
		}
		return execx.RunResult{}, nil
	}
}

// writeScene lays out one scene folder with the material
// sub-directories the scanner expects.
func writeScene(t *testing.T, root, name string, narration bool) {
	t.Helper()
	videoDir := filepath.Join(root, name, "视频")
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(videoDir, "clip.mp4"), []byte("v"), 0o644); err != nil {
		t.Fatal(err)
	}
	if narration {
		audioDir := filepath.Join(root, name, "配音")
		if err := os.MkdirAll(audioDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(audioDir, "voice.mp3"), []byte("a"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestOrchestrator(t *testing.T, runner *fakeRunner) (*Orchestrator, string) {
	t.Helper()
	base := t.TempDir()
	settings := config.Default()
	settings.Transition.Name = "fade"
	settings.Transition.DurationSec = 0.5

	o := &Orchestrator{
		Runner:    runner,
		FFmpeg:    "ffmpeg",
		FFprobe:   "ffprobe",
		Settings:  settings,
		GPU:       gpu.DefaultConfig(),
		CachePath: filepath.Join(base, "probe_cache.json"),
		TempDir:   filepath.Join(base, "tmp"),
		Rand:      rand.New(rand.NewSource(1)),
		Log:       zerolog.Nop(),
	}
	return o, base
}

func TestProcessProducesOutputs(t *testing.T) {
	runner := &fakeRunner{}
	o, base := newTestOrchestrator(t, runner)

	materialRoot := filepath.Join(base, "material")
	writeScene(t, materialRoot, "alley", true)
	writeScene(t, materialRoot, "beach", false)
	outputDir := filepath.Join(base, "out")

	var (
		mu       sync.Mutex
		percents []float64
		messages []string
	)
	sink := func(msg string, pct float64) {
		mu.Lock()
		defer mu.Unlock()
		messages = append(messages, msg)
		percents = append(percents, pct)
	}

	folders := []material.Folder{{Path: materialRoot, ExtractMode: config.ExtractSingle}}
	res, err := o.Process(context.Background(), folders, outputDir, 2, "", sink)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.State != StateDone {
		t.Fatalf("state = %s, want %s", res.State, StateDone)
	}
	if o.State() != StateDone {
		t.Fatalf("orchestrator state = %s, want %s", o.State(), StateDone)
	}
	if len(res.Produced) != 2 {
		t.Fatalf("produced %d outputs, want 2: %v", len(res.Produced), res.Produced)
	}
	for _, path := range res.Produced {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("output %s missing: %v", path, err)
		}
	}
	if filepath.Base(res.Produced[0]) != "mix_001.mp4" || filepath.Base(res.Produced[1]) != "mix_002.mp4" {
		t.Fatalf("unexpected output names: %v", res.Produced)
	}

	if len(res.Outputs) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Outputs))
	}
	for _, rec := range res.Outputs {
		if rec.Err != nil {
			t.Fatalf("record %d failed: %v", rec.Index, rec.Err)
		}
		if rec.Strategy != "software" {
			t.Fatalf("record %d strategy = %q, want software", rec.Index, rec.Strategy)
		}
	}

	if len(res.Elapsed) != 5 || res.Elapsed[2] != ':' {
		t.Fatalf("elapsed = %q, want MM:SS", res.Elapsed)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress went backwards at %d: %v -> %v", i, percents[i-1], percents[i])
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Fatalf("final percent = %v, want 100", percents[len(percents)-1])
	}
	for _, msg := range messages {
		if !strings.HasPrefix(msg, "[") || !strings.Contains(msg, ":") {
			t.Fatalf("message lacks elapsed prefix: %q", msg)
		}
	}

	if _, err := os.Stat(o.CachePath); err != nil {
		t.Fatalf("probe cache not written: %v", err)
	}
}

func TestProcessSkipsSceneWithoutVideos(t *testing.T) {
	runner := &fakeRunner{}
	o, base := newTestOrchestrator(t, runner)

	materialRoot := filepath.Join(base, "material")
	writeScene(t, materialRoot, "alley", true)
	// A scene folder with an empty video directory is excluded, the
	// batch proceeds with what remains.
	if err := os.MkdirAll(filepath.Join(materialRoot, "empty", "视频"), 0o755); err != nil {
		t.Fatal(err)
	}

	folders := []material.Folder{{Path: materialRoot, ExtractMode: config.ExtractSingle}}
	res, err := o.Process(context.Background(), folders, filepath.Join(base, "out"), 1, "", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Produced) != 1 {
		t.Fatalf("produced %d outputs, want 1", len(res.Produced))
	}
}

func TestProcessFailsWhenNoScenesUsable(t *testing.T) {
	runner := &fakeRunner{}
	o, base := newTestOrchestrator(t, runner)

	materialRoot := filepath.Join(base, "material")
	if err := os.MkdirAll(filepath.Join(materialRoot, "empty", "视频"), 0o755); err != nil {
		t.Fatal(err)
	}

	folders := []material.Folder{{Path: materialRoot, ExtractMode: config.ExtractSingle}}
	res, err := o.Process(context.Background(), folders, filepath.Join(base, "out"), 1, "", nil)
	if err == nil {
		t.Fatal("expected error when nothing is usable")
	}
	var matErr *MaterialError
	if !errors.As(err, &matErr) {
		t.Fatalf("err = %T (%v), want MaterialError", err, err)
	}
	if !errors.Is(err, material.ErrNoScenes) {
		t.Fatalf("err should wrap ErrNoScenes, got %v", err)
	}
	if res.State != StateFailed {
		t.Fatalf("state = %s, want %s", res.State, StateFailed)
	}
}

func TestProcessRejectsMissingFolder(t *testing.T) {
	runner := &fakeRunner{}
	o, base := newTestOrchestrator(t, runner)

	folders := []material.Folder{{Path: filepath.Join(base, "nope")}}
	_, err := o.Process(context.Background(), folders, filepath.Join(base, "out"), 1, "", nil)

	var matErr *MaterialError
	if !errors.As(err, &matErr) {
		t.Fatalf("err = %T (%v), want MaterialError", err, err)
	}
	if matErr.Path == "" {
		t.Fatal("material error should name the folder")
	}
}

func TestProcessAbsorbsSingleOutputFailure(t *testing.T) {
	runner := &fakeRunner{
		fail: func(args []string) bool {
			return argsHave(args, "-movflags") && argsHave(args, "mix_001.mp4")
		},
	}
	o, base := newTestOrchestrator(t, runner)

	materialRoot := filepath.Join(base, "material")
	writeScene(t, materialRoot, "alley", true)
	writeScene(t, materialRoot, "beach", true)
	outputDir := filepath.Join(base, "out")

	folders := []material.Folder{{Path: materialRoot, ExtractMode: config.ExtractSingle}}
	res, err := o.Process(context.Background(), folders, outputDir, 2, "", nil)
	if err != nil {
		t.Fatalf("partial success must not error: %v", err)
	}

	if len(res.Produced) != 1 || filepath.Base(res.Produced[0]) != "mix_002.mp4" {
		t.Fatalf("produced = %v, want only mix_002.mp4", res.Produced)
	}

	var encErr *EncodeError
	if !errors.As(res.Outputs[0].Err, &encErr) {
		t.Fatalf("first record err = %T (%v), want EncodeError", res.Outputs[0].Err, res.Outputs[0].Err)
	}
	if res.Outputs[1].Err != nil {
		t.Fatalf("second record should succeed: %v", res.Outputs[1].Err)
	}

	if _, err := os.Stat(filepath.Join(outputDir, "mix_001.mp4")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed output should be deleted, stat err = %v", err)
	}
}

func TestProcessFailsWhenEveryOutputFails(t *testing.T) {
	runner := &fakeRunner{
		fail: func(args []string) bool { return argsHave(args, "-movflags") },
	}
	o, base := newTestOrchestrator(t, runner)

	materialRoot := filepath.Join(base, "material")
	writeScene(t, materialRoot, "alley", true)

	folders := []material.Folder{{Path: materialRoot, ExtractMode: config.ExtractSingle}}
	res, err := o.Process(context.Background(), folders, filepath.Join(base, "out"), 2, "", nil)
	if err == nil {
		t.Fatal("expected error when no output succeeds")
	}
	if !strings.Contains(err.Error(), "no outputs produced") {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != StateFailed {
		t.Fatalf("state = %s, want %s", res.State, StateFailed)
	}
}

func TestProcessStopIsInterruptedNotFailed(t *testing.T) {
	runner := &fakeRunner{}
	o, base := newTestOrchestrator(t, runner)

	materialRoot := filepath.Join(base, "material")
	writeScene(t, materialRoot, "alley", true)
	writeScene(t, materialRoot, "beach", true)
	outputDir := filepath.Join(base, "out")

	var once sync.Once
	sink := func(msg string, pct float64) {
		if strings.Contains(msg, "planned") {
			once.Do(o.Stop)
		}
	}

	folders := []material.Folder{{Path: materialRoot, ExtractMode: config.ExtractSingle}}
	res, err := o.Process(context.Background(), folders, outputDir, 3, "", sink)

	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if res.State != StateStopped {
		t.Fatalf("state = %s, want %s", res.State, StateStopped)
	}
	if o.State() != StateStopped {
		t.Fatalf("orchestrator state = %s, want %s", o.State(), StateStopped)
	}
	if len(res.Produced) != 0 {
		t.Fatalf("no output should complete after an early stop, got %v", res.Produced)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".mp4") {
			t.Fatalf("partial output left behind: %s", e.Name())
		}
	}
}

func argsHave(args []string, want string) bool {
	for _, a := range args {
		if strings.Contains(a, want) {
			return true
		}
	}
	return false
}
