package gpu

import (
	"context"

	"videomix/internal/execx"
)

// HardwareEncoders lists the h264 hardware encoders probed during
// detection, in preference order.
var HardwareEncoders = []string{EncoderNVENC, EncoderQSV, EncoderAMF}

// TestEncoder verifies a codec actually works by encoding a single
// generated frame. ffmpeg reports many encoders it cannot run, so a
// real test encode is the only reliable availability signal.
func TestEncoder(ctx context.Context, runner execx.Runner, ffmpegPath, codec string) bool {
	if ffmpegPath == "" {
		return false
	}
	args := []string{
		"-hide_banner",
		"-f", "lavfi",
		"-i", "color=black:s=64x64:d=1:r=1",
		"-c:v", codec,
		"-frames:v", "1",
		"-f", "null",
		"-",
	}
	res, err := runner.Run(ctx, ffmpegPath, args, execx.RunOptions{})
	if err != nil {
		return false
	}
	return res.ExitCode == 0
}

// ProbeEncoders runs a test encode for every known hardware encoder
// and returns those that succeeded.
func ProbeEncoders(ctx context.Context, runner execx.Runner, ffmpegPath string) []string {
	var available []string
	for _, codec := range HardwareEncoders {
		if ctx.Err() != nil {
			break
		}
		if TestEncoder(ctx, runner, ffmpegPath, codec) {
			available = append(available, codec)
		}
	}
	return available
}
