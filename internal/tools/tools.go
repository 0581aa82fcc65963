// Package tools locates the external executables the pipeline drives
// (ffmpeg, ffprobe, nvidia-smi) and reads their versions. A plain-text
// override file in the global directory can point at a custom ffmpeg
// build; ffprobe is then expected beside it, falling back to PATH.
package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"videomix/internal/paths"
)

// ToolInfo captures availability and version details for an external tool.
type ToolInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Available bool   `json:"available"`
	Source    string `json:"source,omitempty"` // "override" or "path"
	Error     string `json:"error,omitempty"`
}

// Toolset holds the resolved encoder executables for a run.
type Toolset struct {
	FFmpeg       string
	FFprobe      string
	FFmpegSource string
}

// Locate resolves ffmpeg and ffprobe, honoring the override file when
// it names an existing executable.
func Locate(pp paths.ToolPaths) (Toolset, error) {
	ts := Toolset{FFmpegSource: "path"}

	if override, ok := readOverride(pp.FFmpegPathFile); ok {
		ts.FFmpeg = override
		ts.FFmpegSource = "override"
		if sibling := siblingProbe(override); sibling != "" {
			ts.FFprobe = sibling
		}
	}

	if ts.FFmpeg == "" {
		path, err := exec.LookPath("ffmpeg")
		if err != nil {
			return Toolset{}, fmt.Errorf("ffmpeg not found on PATH (set %s to use a custom build): %w", pp.FFmpegPathFile, err)
		}
		ts.FFmpeg = path
	}

	if ts.FFprobe == "" {
		path, err := exec.LookPath("ffprobe")
		if err != nil {
			return Toolset{}, fmt.Errorf("ffprobe not found on PATH: %w", err)
		}
		ts.FFprobe = path
	}

	return ts, nil
}

// readOverride returns the first non-empty line of the override file
// when it points at an existing file.
func readOverride(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if ok, err := paths.FileExists(line); err == nil && ok {
			return line, true
		}
		return "", false
	}
	return "", false
}

// siblingProbe looks for ffprobe next to a custom ffmpeg executable.
func siblingProbe(ffmpegPath string) string {
	name := "ffprobe"
	if runtime.GOOS == "windows" {
		name = "ffprobe.exe"
	}
	candidate := filepath.Join(filepath.Dir(ffmpegPath), name)
	if ok, err := paths.FileExists(candidate); err == nil && ok {
		return candidate
	}
	return ""
}

// Probe discovers tool availability and version information for the
// doctor command.
func Probe(ctx context.Context, pp paths.ToolPaths) map[string]ToolInfo {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	result := make(map[string]ToolInfo, 3)

	ts, err := Locate(pp)
	if err != nil {
		result["ffmpeg"] = ToolInfo{Name: "ffmpeg", Available: false, Error: err.Error()}
		result["ffprobe"] = ToolInfo{Name: "ffprobe", Available: false, Error: err.Error()}
	} else {
		result["ffmpeg"] = probeAt(ctx, "ffmpeg", ts.FFmpeg, ts.FFmpegSource)
		result["ffprobe"] = probeAt(ctx, "ffprobe", ts.FFprobe, "path")
	}

	result["nvidia-smi"] = probeOne(ctx, "nvidia-smi")
	return result
}

func probeOne(ctx context.Context, name string) ToolInfo {
	path, err := exec.LookPath(name)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return ToolInfo{Name: name, Available: false, Error: "not found"}
		}
		return ToolInfo{Name: name, Available: false, Error: err.Error()}
	}
	return probeAt(ctx, name, path, "path")
}

func probeAt(ctx context.Context, name, path, source string) ToolInfo {
	version, err := readVersion(ctx, path, name)
	if err != nil {
		return ToolInfo{Name: name, Path: path, Available: true, Source: source, Error: err.Error()}
	}
	return ToolInfo{Name: name, Path: path, Version: version, Available: true, Source: source}
}

func readVersion(ctx context.Context, path, name string) (string, error) {
	var args []string
	switch name {
	case "ffmpeg", "ffprobe":
		args = []string{"-version"}
	case "nvidia-smi":
		args = []string{"--query-gpu=driver_version", "--format=csv,noheader"}
	default:
		return "", fmt.Errorf("unsupported tool: %s", name)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	line := firstLine(strings.TrimSpace(string(output)))
	return normalizeVersionLine(name, line), nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}

func normalizeVersionLine(name, line string) string {
	switch name {
	case "ffmpeg", "ffprobe":
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			return fields[2]
		}
	}
	return line
}
