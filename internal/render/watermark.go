package render

import (
	"fmt"
	"time"

	"videomix/internal/config"
)

// Stamper issues watermark texts: prefix plus a minute-resolution
// timestamp, with a counter suffix disambiguating outputs burned
// within the same minute.
type Stamper struct {
	Now func() time.Time

	last    string
	counter int
}

func (s *Stamper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Next returns the watermark text for the next output.
func (s *Stamper) Next(prefix string) string {
	stamp := s.now().Format("200601021504")
	if stamp == s.last {
		s.counter++
		return fmt.Sprintf("%s%s-%d", prefix, stamp, s.counter)
	}
	s.last = stamp
	s.counter = 0
	return prefix + stamp
}

// buildWatermarkArgs burns the text over a finished video in a second
// pass, re-encoding video with the supplied encoder arguments and
// copying audio straight through.
func buildWatermarkArgs(inputPath, outputPath, text string, wm config.WatermarkSettings, videoArgs []string) []string {
	x, y := watermarkPosition(wm.Position, wm.OffsetX, wm.OffsetY)
	dt := buildDrawText(drawTextOptions{
		Text:      text,
		FontSize:  wm.FontSize,
		FontColor: wm.Color,
		XExpr:     x,
		YExpr:     y,
	})

	args := []string{
		"-hide_banner",
		"-y",
		"-i", inputPath,
		"-vf", dt,
	}
	args = append(args, videoArgs...)
	args = append(args, "-c:a", "copy", outputPath)
	return args
}
