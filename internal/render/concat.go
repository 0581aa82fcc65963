package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videomix/internal/execx"
)

// WriteConcatList writes an ffmpeg concat demuxer list. Every segment
// path is verified to exist before anything is written.
func WriteConcatList(concatFile string, segments []string) error {
	var missing []string
	for _, seg := range segments {
		if _, err := os.Stat(seg); os.IsNotExist(err) {
			missing = append(missing, seg)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %d segment file(s):\n  %s", len(missing), strings.Join(missing, "\n  "))
	}

	f, err := os.Create(concatFile)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer f.Close()

	for _, seg := range segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			abs = seg
		}
		// Escape single quotes in paths for the concat file format.
		escaped := strings.ReplaceAll(abs, "'", "'\\''")
		fmt.Fprintf(f, "file '%s'\n", escaped)
	}
	return nil
}

// ConcatResult holds the outcome of a concat run.
type ConcatResult struct {
	OutputPath string
	Method     string // "stream_copy" or "re-encode"
}

// RunConcat joins segments with the concat demuxer: stream copy first,
// re-encoding with a fast software pass when the copy fails. Used for
// the plain-cut ("none") timeline where no filtergraph is needed.
func RunConcat(ctx context.Context, runner execx.Runner, ffmpegPath, concatFile, outputPath string) (ConcatResult, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return ConcatResult{}, fmt.Errorf("prepare output dir: %w", err)
	}

	streamArgs := []string{
		"-hide_banner",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", concatFile,
		"-c", "copy",
		outputPath,
	}
	res, err := runner.Run(ctx, ffmpegPath, streamArgs, execx.RunOptions{})
	if err == nil && res.ExitCode == 0 {
		return ConcatResult{OutputPath: outputPath, Method: "stream_copy"}, nil
	}
	if ctx.Err() != nil {
		return ConcatResult{}, ctx.Err()
	}

	reencodeArgs := []string{
		"-hide_banner",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", concatFile,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		outputPath,
	}
	res, err = runner.Run(ctx, ffmpegPath, reencodeArgs, execx.RunOptions{})
	if err != nil {
		return ConcatResult{}, fmt.Errorf("concat re-encode: %w", err)
	}
	if res.ExitCode != 0 {
		return ConcatResult{}, fmt.Errorf("concat re-encode failed: %s", tailOf(res.Stderr))
	}
	return ConcatResult{OutputPath: outputPath, Method: "re-encode"}, nil
}

// tailOf keeps the last few lines of captured output for error
// messages.
func tailOf(b []byte) string {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "(no output)"
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
