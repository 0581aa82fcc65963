package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromGlobalDir(t *testing.T) {
	pp := FromGlobalDir("/data/.videomix")

	if pp.SettingsFile != filepath.Join("/data/.videomix", "settings.yaml") {
		t.Fatalf("unexpected settings file %s", pp.SettingsFile)
	}
	if pp.GPUProfileFile != filepath.Join("/data/.videomix", "gpu_profile.json") {
		t.Fatalf("unexpected gpu profile file %s", pp.GPUProfileFile)
	}
	if pp.FFmpegPathFile != filepath.Join("/data/.videomix", "ffmpeg_path.txt") {
		t.Fatalf("unexpected ffmpeg path file %s", pp.FFmpegPathFile)
	}
	if pp.LogsDir != filepath.Join("/data/.videomix", "logs") {
		t.Fatalf("unexpected logs dir %s", pp.LogsDir)
	}
}

func TestWithTempDir(t *testing.T) {
	pp := FromGlobalDir("/data/.videomix")

	abs := pp.WithTempDir("/scratch/mix")
	if abs.TempDir != "/scratch/mix" {
		t.Fatalf("absolute temp dir not honored: %s", abs.TempDir)
	}

	rel := pp.WithTempDir("work")
	if rel.TempDir != filepath.Join("/data/.videomix", "work") {
		t.Fatalf("relative temp dir not resolved: %s", rel.TempDir)
	}

	unchanged := pp.WithTempDir("")
	if unchanged.TempDir != pp.TempDir {
		t.Fatalf("empty override should keep default, got %s", unchanged.TempDir)
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	pp := FromGlobalDir(filepath.Join(root, ".videomix"))

	if err := pp.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{pp.GlobalDir, pp.LogsDir, pp.TempDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", dir, err)
		}
	}
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	if err := CheckWritable(dir); err != nil {
		t.Fatalf("CheckWritable on temp dir: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("probe file left behind: %v", entries)
	}

	if err := CheckWritable(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ok, err := FileExists(file)
	if err != nil || !ok {
		t.Fatalf("FileExists(%s) = %v, %v", file, ok, err)
	}
	ok, err = FileExists(dir)
	if err != nil || ok {
		t.Fatalf("FileExists on dir should be false, got %v, %v", ok, err)
	}
	ok, err = FileExists(filepath.Join(dir, "nope"))
	if err != nil || ok {
		t.Fatalf("FileExists on missing should be false, got %v, %v", ok, err)
	}
}
