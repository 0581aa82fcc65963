package render

import (
	"strings"
	"testing"
)

func TestNormalizeChain(t *testing.T) {
	chain := NormalizeChain(1080, 1920, 30)
	if len(chain) != 4 {
		t.Fatalf("expected 4 filters, got %d: %v", len(chain), chain)
	}

	joined := strings.Join(chain, ",")
	expectations := []string{
		"scale=w=1080:h=1920:force_original_aspect_ratio=1:flags=lanczos",
		"pad=w=1080:h=1920:x=(ow-iw)/2:y=(oh-ih)/2:color=black",
		"setsar=1",
		"fps=30",
	}
	for _, expected := range expectations {
		if !strings.Contains(joined, expected) {
			t.Fatalf("chain missing %q:\n%s", expected, joined)
		}
	}
}

func TestBuildDrawTextDefaults(t *testing.T) {
	dt := buildDrawText(drawTextOptions{Text: "hello"})

	expectations := []string{
		"drawtext=",
		"text='hello'",
		"fontsize=12",
		"fontcolor=white",
		"x=w-text_w-10",
		"y=h-text_h-10",
	}
	for _, expected := range expectations {
		if !strings.Contains(dt, expected) {
			t.Fatalf("drawtext missing %q:\n%s", expected, dt)
		}
	}
	if strings.Contains(dt, "fontfile") {
		t.Fatalf("no font file requested, got:\n%s", dt)
	}
}

func TestBuildDrawTextEscapesText(t *testing.T) {
	dt := buildDrawText(drawTextOptions{
		Text:     "it's 12:30, ok",
		FontSize: 36,
	})

	expectations := []string{
		`it''s`,
		`12\:30`,
		`\,`,
	}
	for _, expected := range expectations {
		if !strings.Contains(dt, expected) {
			t.Fatalf("escaped drawtext missing %q:\n%s", expected, dt)
		}
	}
}

func TestBuildDrawTextFlattensNewlines(t *testing.T) {
	dt := buildDrawText(drawTextOptions{Text: "line one\r\nline two"})
	if !strings.Contains(dt, `line one\nline two`) {
		t.Fatalf("newline not normalized:\n%s", dt)
	}
}

func TestBuildDrawTextFontFile(t *testing.T) {
	dt := buildDrawText(drawTextOptions{
		Text:     "stamp",
		FontFile: `C:\Fonts\msyh.ttf`,
	})
	if !strings.Contains(dt, "fontfile='") {
		t.Fatalf("font file missing:\n%s", dt)
	}
	if strings.Contains(dt, `C:\Fonts`) {
		t.Fatalf("windows path should be escaped for the filter parser:\n%s", dt)
	}
}

func TestQuoteExprEscapesSeparators(t *testing.T) {
	quoted := quoteExpr("clip(t/1.5,0,1)")
	if quoted[0] != '\'' || quoted[len(quoted)-1] != '\'' {
		t.Fatalf("expression not quoted: %s", quoted)
	}
	if !strings.Contains(quoted, `\,`) {
		t.Fatalf("commas must be escaped inside filter values: %s", quoted)
	}
}

func TestFormatFloatTrimsTrailingZeros(t *testing.T) {
	cases := map[float64]string{
		1:    "1",
		0.5:  "0.5",
		6.25: "6.25",
		7:    "7",
	}
	for in, want := range cases {
		if got := formatFloat(in); got != want {
			t.Fatalf("formatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestClampFloat(t *testing.T) {
	if got := clampFloat(1.5, 0, 1); got != 1 {
		t.Fatalf("clamp above = %v", got)
	}
	if got := clampFloat(-0.5, 0, 1); got != 0 {
		t.Fatalf("clamp below = %v", got)
	}
	if got := clampFloat(0.25, 0, 1); got != 0.25 {
		t.Fatalf("clamp inside = %v", got)
	}
}
