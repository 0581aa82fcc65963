package render

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"videomix/internal/config"
)

// NormalizeChain is the per-clip conformance chain: every clip entering
// a composite is scaled into the target frame, padded to full size,
// square-pixeled and rate-converted so concat and xfade see uniform
// streams.
func NormalizeChain(width, height, fps int) []string {
	return []string{
		fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=1:flags=lanczos", width, height),
		fmt.Sprintf("pad=w=%d:h=%d:x=(ow-iw)/2:y=(oh-ih)/2:color=black", width, height),
		"setsar=1",
		fmt.Sprintf("fps=%d", fps),
	}
}

type drawTextOptions struct {
	Text      string
	FontSize  int
	FontColor string
	FontFile  string
	XExpr     string
	YExpr     string
}

func buildDrawText(opts drawTextOptions) string {
	values := []string{
		fmt.Sprintf("text='%s'", escapeDrawText(opts.Text)),
		fmt.Sprintf("fontsize=%d", maxInt(opts.FontSize, 12)),
		fmt.Sprintf("fontcolor=%s", fallback(opts.FontColor, "white")),
		fmt.Sprintf("x=%s", fallback(opts.XExpr, "w-text_w-10")),
		fmt.Sprintf("y=%s", fallback(opts.YExpr, "h-text_h-10")),
	}

	if strings.TrimSpace(opts.FontFile) != "" {
		values = append(values, fmt.Sprintf("fontfile='%s'", escapeFFmpegPath(opts.FontFile)))
	}

	return "drawtext=" + strings.Join(values, ":")
}

// watermarkPosition maps a named corner plus pixel offsets to drawtext
// x/y expressions.
func watermarkPosition(position string, offsetX, offsetY int) (string, string) {
	ox := strconv.Itoa(offsetX)
	oy := strconv.Itoa(offsetY)

	switch position {
	case config.PositionTopLeft:
		return ox, oy
	case config.PositionTopRight:
		return fmt.Sprintf("w-text_w-%s", ox), oy
	case config.PositionBottomLeft:
		return ox, fmt.Sprintf("h-text_h-%s", oy)
	case config.PositionBottomRight:
		return fmt.Sprintf("w-text_w-%s", ox), fmt.Sprintf("h-text_h-%s", oy)
	default:
		return fmt.Sprintf("w-text_w-%s", ox), fmt.Sprintf("h-text_h-%s", oy)
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func clampFloat(value, minVal, maxVal float64) float64 {
	return math.Max(minVal, math.Min(maxVal, value))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// quoteExpr wraps an expression value for use inside a filtergraph,
// escaping the characters the graph parser treats as separators.
func quoteExpr(expr string) string {
	return "'" + escapeFilterValue(expr) + "'"
}

func escapeFilterValue(value string) string {
	value = escapeFilterValueNoQuotes(value)
	value = strings.ReplaceAll(value, "'", `\'`)
	return value
}

func escapeFilterValueNoQuotes(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, ":", `\:`)
	value = strings.ReplaceAll(value, ",", `\,`)
	return value
}

func escapeDrawText(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")

	const newlinePlaceholder = "\u0000"
	value = strings.ReplaceAll(value, "\n", newlinePlaceholder)

	value = escapeFilterValueNoQuotes(value)
	value = strings.ReplaceAll(value, newlinePlaceholder, `\n`)
	value = strings.ReplaceAll(value, "'", "''")
	return value
}

func escapeFFmpegPath(value string) string {
	value = filepath.Clean(value)
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, ":", `\:`)
	value = strings.ReplaceAll(value, "'", `\'`)
	return value
}
