package render

import (
	"fmt"
	"math"
)

// Background music fade timings, in seconds.
const (
	bgmFadeIn  = 0.5
	bgmFadeOut = 1.0
)

// BuildBGMMixGraph builds the filter_complex that loops a music bed
// (input 1) under the main audio (input 0): looped to the full length,
// trimmed, faded in and out, scaled to the configured volume, then
// mixed beneath the narration bus.
func BuildBGMMixGraph(totalDuration, bgmVolume float64) (string, string) {
	g := &graphBuilder{}
	bed := g.label("bgm")
	out := g.label("amix")

	fadeOutStart := math.Max(totalDuration-bgmFadeOut, 0)
	g.add(fmt.Sprintf(
		"[1:a]aloop=loop=-1:size=2147483647,atrim=duration=%s,asetpts=PTS-STARTPTS,volume=%s,afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s[%s]",
		formatFloat(totalDuration),
		formatFloat(bgmVolume),
		formatFloat(bgmFadeIn),
		formatFloat(fadeOutStart),
		formatFloat(bgmFadeOut),
		bed,
	))
	g.add(fmt.Sprintf("[0:a][%s]amix=inputs=2:duration=first:dropout_transition=0[%s]", bed, out))

	return g.graph(), out
}
