// Package paths resolves the canonical on-disk locations the tool
// reads and writes: the per-user global directory, settings and GPU
// profile files, the ffmpeg override file, the probe index, logs, and
// the temp workspace.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ToolPaths captures canonical locations for a videomix run.
type ToolPaths struct {
	GlobalDir      string
	SettingsFile   string
	GPUProfileFile string
	FFmpegPathFile string
	ProbeIndexFile string
	LogsDir        string
	TempDir        string
}

// Resolve determines the per-user locations rooted at ~/.videomix.
func Resolve() (ToolPaths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return ToolPaths{}, fmt.Errorf("detect user home: %w", err)
	}
	return FromGlobalDir(filepath.Join(home, ".videomix")), nil
}

// FromGlobalDir builds ToolPaths rooted at an explicit directory.
// Used by tests and by the --config-dir override.
func FromGlobalDir(dir string) ToolPaths {
	return ToolPaths{
		GlobalDir:      dir,
		SettingsFile:   filepath.Join(dir, "settings.yaml"),
		GPUProfileFile: filepath.Join(dir, "gpu_profile.json"),
		FFmpegPathFile: filepath.Join(dir, "ffmpeg_path.txt"),
		ProbeIndexFile: filepath.Join(dir, "probe_index.json"),
		LogsDir:        filepath.Join(dir, "logs"),
		TempDir:        filepath.Join(dir, "temp"),
	}
}

// WithTempDir returns a copy using an explicit temp directory, as
// configured in settings. Relative values resolve against the global
// directory.
func (p ToolPaths) WithTempDir(dir string) ToolPaths {
	if dir == "" {
		return p
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.GlobalDir, dir)
	}
	p.TempDir = filepath.Clean(dir)
	return p
}

// EnsureDirs creates the global directory hierarchy.
func (p ToolPaths) EnsureDirs() error {
	dirs := []string{p.GlobalDir, p.LogsDir, p.TempDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CheckWritable verifies a directory accepts file creation by writing
// and removing a small probe file.
func CheckWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat output dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", dir)
	}
	probe := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(probe, []byte("t"), 0o644); err != nil {
		return fmt.Errorf("output dir %s is not writable: %w", dir, err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("remove write probe: %w", err)
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
