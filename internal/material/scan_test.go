package material

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"videomix/internal/execx"
)

type fakeRunner struct {
	probes    int
	durations map[string]float64
}

func (f *fakeRunner) Run(ctx context.Context, command string, args []string, opts execx.RunOptions) (execx.RunResult, error) {
	f.probes++
	target := args[len(args)-1]
	base := filepath.Base(target)

	duration, ok := f.durations[base]
	if !ok {
		duration = 10
	}

	var payload string
	if audioExtensions[strings.ToLower(filepath.Ext(base))] {
		payload = fmt.Sprintf(`{"format":{"format_name":"mp3","duration":"%.2f"},"streams":[{"index":0,"codec_type":"audio","codec_name":"mp3"}]}`, duration)
	} else {
		payload = fmt.Sprintf(`{"format":{"format_name":"mov,mp4,m4a","duration":"%.2f"},"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"r_frame_rate":"30/1"}]}`, duration)
	}
	return execx.RunResult{Stdout: []byte(payload), ExitCode: 0}, nil
}

func newTestScanner(runner *fakeRunner) *Scanner {
	return &Scanner{
		Prober: Prober{Runner: runner, FFprobe: "ffprobe", Log: zerolog.Nop()},
		Log:    zerolog.Nop(),
	}
}

func writeMedia(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanLeafMode(t *testing.T) {
	root := t.TempDir()
	writeMedia(t, filepath.Join(root, videoDirName, "clip_a.mp4"))
	writeMedia(t, filepath.Join(root, videoDirName, "clip_b.mov"))
	writeMedia(t, filepath.Join(root, audioDirName, "voice.mp3"))
	writeMedia(t, filepath.Join(root, videoDirName, "notes.txt"))

	s := newTestScanner(&fakeRunner{durations: map[string]float64{"clip_a.mp4": 12.5}})
	scenes, err := s.Scan(context.Background(), []Folder{{Path: root, DisplayName: "intro"}}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	scene, ok := scenes["intro"]
	if !ok {
		t.Fatalf("expected leaf scene keyed by display name, got keys %v", sceneKeys(scenes))
	}
	if len(scene.Videos) != 2 {
		t.Errorf("videos = %d, want 2 (non-media files excluded)", len(scene.Videos))
	}
	if len(scene.Audios) != 1 {
		t.Errorf("audios = %d, want 1", len(scene.Audios))
	}
	if !scene.HasNarration() {
		t.Error("scene with audio should report narration")
	}
	for _, v := range scene.Videos {
		if filepath.Base(v.Path) == "clip_a.mp4" && v.Duration != 12.5 {
			t.Errorf("clip_a duration = %v, want 12.5", v.Duration)
		}
	}
}

func TestScanParentMode(t *testing.T) {
	root := t.TempDir()
	writeMedia(t, filepath.Join(root, "beach", videoDirName, "v1.mp4"))
	writeMedia(t, filepath.Join(root, "alley", videoDirName, "v1.mp4"))
	writeMedia(t, filepath.Join(root, "alley", audioDirName, "narration.wav"))
	// Child with audio only: excluded for having no videos.
	writeMedia(t, filepath.Join(root, "creek", audioDirName, "voice.mp3"))

	s := newTestScanner(&fakeRunner{})
	scenes, err := s.Scan(context.Background(), []Folder{{Path: root}}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	keys := sceneKeys(scenes)
	want := []string{"01_alley", "02_beach"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
	if scenes["01_alley"].SegmentIndex != 1 || scenes["02_beach"].SegmentIndex != 2 {
		t.Error("segment indexes should follow sorted child order")
	}
}

func TestScanIdempotence(t *testing.T) {
	root := t.TempDir()
	for _, child := range []string{"one", "two", "three"} {
		writeMedia(t, filepath.Join(root, child, videoDirName, "clip.mp4"))
	}

	s := newTestScanner(&fakeRunner{})
	first, err := s.Scan(context.Background(), []Folder{{Path: root}}, nil)
	if err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	second, err := s.Scan(context.Background(), []Folder{{Path: root}}, nil)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}

	fk, sk := sceneKeys(first), sceneKeys(second)
	if len(fk) != len(sk) {
		t.Fatalf("key counts differ: %v vs %v", fk, sk)
	}
	for i := range fk {
		if fk[i] != sk[i] {
			t.Fatalf("key order differs: %v vs %v", fk, sk)
		}
		if len(first[fk[i]].Videos) != len(second[sk[i]].Videos) {
			t.Errorf("video count differs for %s", fk[i])
		}
	}
}

func TestScanNoScenes(t *testing.T) {
	s := newTestScanner(&fakeRunner{})
	_, err := s.Scan(context.Background(), []Folder{{Path: t.TempDir()}}, nil)
	if err == nil {
		t.Fatal("expected error for empty material root")
	}
	if err != ErrNoScenes {
		t.Errorf("err = %v, want ErrNoScenes", err)
	}
}

func TestScanShortcutChildren(t *testing.T) {
	root := t.TempDir()
	elsewhere := t.TempDir()
	writeMedia(t, filepath.Join(elsewhere, "remote", videoDirName, "clip.mp4"))

	if err := os.Symlink(filepath.Join(elsewhere, "remote"), filepath.Join(root, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(elsewhere, "gone"), filepath.Join(root, "dangling")); err != nil {
		t.Fatal(err)
	}
	writeMedia(t, filepath.Join(root, "plain", videoDirName, "clip.mp4"))

	s := newTestScanner(&fakeRunner{})
	scenes, err := s.Scan(context.Background(), []Folder{{Path: root}}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	keys := sceneKeys(scenes)
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want linked + plain only", keys)
	}
	if !strings.HasSuffix(keys[0], "_linked") || !strings.HasSuffix(keys[1], "_plain") {
		t.Errorf("keys = %v", keys)
	}
}

func TestScanProgressStaysInBudget(t *testing.T) {
	root := t.TempDir()
	writeMedia(t, filepath.Join(root, "a", videoDirName, "clip.mp4"))

	var percents []float64
	s := newTestScanner(&fakeRunner{})
	_, err := s.Scan(context.Background(), []Folder{{Path: root}}, func(msg string, pct float64) {
		percents = append(percents, pct)
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(percents) == 0 {
		t.Fatal("expected progress callbacks")
	}
	last := percents[len(percents)-1]
	if last <= 0 || last > scanBudget {
		t.Errorf("final scan percent = %v, want within (0, %v]", last, scanBudget)
	}
}

func TestScanUsesProbeCache(t *testing.T) {
	root := t.TempDir()
	writeMedia(t, filepath.Join(root, "a", videoDirName, "clip.mp4"))
	writeMedia(t, filepath.Join(root, "a", videoDirName, "other.mp4"))

	runner := &fakeRunner{}
	s := newTestScanner(runner)
	s.Cache = NewIndex()

	if _, err := s.Scan(context.Background(), []Folder{{Path: root}}, nil); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	afterFirst := runner.probes
	if afterFirst != 2 {
		t.Fatalf("probes after first scan = %d, want 2", afterFirst)
	}

	if _, err := s.Scan(context.Background(), []Folder{{Path: root}}, nil); err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if runner.probes != afterFirst {
		t.Errorf("cached scan ran %d extra probes", runner.probes-afterFirst)
	}
}

func TestIndexRoundTripAndInvalidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe_index.json")
	now := time.Now().Truncate(time.Second)

	idx := NewIndex()
	idx.Store("/media/a.mp4", 1024, now, ClipInfo{Path: "/media/a.mp4", Duration: 9.5, FPS: 30})
	if err := SaveIndex(path, idx); err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}

	loaded, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	clip, ok := loaded.Lookup("/media/a.mp4", 1024, now)
	if !ok {
		t.Fatal("expected cache hit for unchanged file")
	}
	if clip.Duration != 9.5 {
		t.Errorf("duration = %v, want 9.5", clip.Duration)
	}

	if _, ok := loaded.Lookup("/media/a.mp4", 2048, now); ok {
		t.Error("size change should invalidate the entry")
	}
	if _, ok := loaded.Lookup("/media/a.mp4", 1024, now.Add(time.Minute)); ok {
		t.Error("mtime change should invalidate the entry")
	}
}

func TestLoadIndexCorruptDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe_index.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := LoadIndex(path)
	if err == nil {
		t.Error("expected decode error for corrupt index")
	}
	if idx == nil || idx.Entries == nil {
		t.Fatal("corrupt index should still yield a usable empty structure")
	}
}

func sceneKeys(scenes map[string]Scene) []string {
	ordered := SortedScenes(scenes)
	keys := make([]string, 0, len(ordered))
	for _, sc := range ordered {
		keys = append(keys, sc.Key)
	}
	return keys
}
