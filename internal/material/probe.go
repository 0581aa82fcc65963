package material

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"videomix/internal/execx"
	"videomix/pkg/mediainfo"
)

// Prober wraps ffprobe invocation and turns its JSON output into
// ClipInfo.
type Prober struct {
	Runner  execx.Runner
	FFprobe string
	Log     zerolog.Logger
}

// ProbeFile runs ffprobe against a single file. Files without a
// resolvable duration are reported as errors so the scanner can
// exclude them.
func (p Prober) ProbeFile(ctx context.Context, path string) (ClipInfo, error) {
	args := []string{
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		path,
	}

	result, err := p.Runner.Run(ctx, p.FFprobe, args, execx.RunOptions{})
	if err != nil {
		return ClipInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	info, err := mediainfo.Parse(result.Stdout)
	if err != nil {
		return ClipInfo{}, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	duration, err := info.RequireDuration()
	if err != nil {
		return ClipInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}

	clip := ClipInfo{Path: path, Duration: duration, HasAudio: info.HasAudio()}
	if vs, ok := info.FirstVideo(); ok {
		clip.Width = vs.Width
		clip.Height = vs.Height
		clip.FPS = vs.FPS()
	}
	return clip, nil
}
