package render

import (
	"fmt"
	"strings"

	"videomix/internal/config"
	"videomix/internal/plan"
)

// buildMergeArgs assembles the ffmpeg invocation that materializes one
// scene: the planned trims concatenated, conformed to the target
// frame, with narration replacing the clip audio when present. The
// merged file always carries an audio track so downstream composites
// can rely on it: narration, the clips' own audio, or silence.
func buildMergeArgs(sel plan.Selection, settings config.Settings, outputPath string) []string {
	width, height := settings.Video.Dimensions()
	fps := settings.Video.FPS
	if fps <= 0 {
		fps = 30
	}
	total := sel.TotalDuration()

	args := []string{"-hide_banner", "-y"}
	for _, p := range sel.Parts {
		args = append(args, "-i", p.Path)
	}

	narrationIdx := -1
	silenceIdx := -1
	if sel.AudioPath != "" {
		narrationIdx = len(sel.Parts)
		args = append(args, "-i", sel.AudioPath)
	} else if anyPartSilent(sel.Parts) {
		silenceIdx = len(sel.Parts)
		args = append(args,
			"-f", "lavfi",
			"-t", formatFloat(total),
			"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		)
	}

	graph, vLabel, aLabel := buildMergeGraph(sel, width, height, fps, narrationIdx, silenceIdx, settings.Audio.VoiceVolume)

	args = append(args,
		"-filter_complex", graph,
		"-map", "["+vLabel+"]",
		"-map", "["+aLabel+"]",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		outputPath,
	)
	return args
}

func buildMergeGraph(sel plan.Selection, width, height, fps, narrationIdx, silenceIdx int, voiceVolume float64) (string, string, string) {
	g := &graphBuilder{}
	total := sel.TotalDuration()

	partLabels := make([]string, len(sel.Parts))
	for i, p := range sel.Parts {
		chain := []string{partTrim(p), "setpts=PTS-STARTPTS"}
		chain = append(chain, NormalizeChain(width, height, fps)...)
		partLabels[i] = g.emit(fmt.Sprintf("%d:v", i), strings.Join(chain, ","))
	}

	vLabel := partLabels[0]
	if len(partLabels) > 1 {
		vLabel = g.label("vcat")
		g.add(fmt.Sprintf("%sconcat=n=%d:v=1:a=0[%s]", brackets(partLabels), len(partLabels), vLabel))
	}

	var aLabel string
	switch {
	case narrationIdx >= 0:
		aLabel = g.label("a")
		g.add(fmt.Sprintf("[%d:a]volume=%s,apad,atrim=duration=%s,asetpts=PTS-STARTPTS[%s]",
			narrationIdx, formatFloat(voiceVolume), formatFloat(total), aLabel))
	case silenceIdx >= 0:
		aLabel = g.label("a")
		g.add(fmt.Sprintf("[%d:a]atrim=duration=%s[%s]", silenceIdx, formatFloat(total), aLabel))
	default:
		audioParts := make([]string, len(sel.Parts))
		for i, p := range sel.Parts {
			audioParts[i] = g.label("pa")
			g.add(fmt.Sprintf("[%d:a]%s,asetpts=PTS-STARTPTS,aformat=sample_rates=44100:channel_layouts=stereo[%s]",
				i, partATrim(p), audioParts[i]))
		}
		aLabel = audioParts[0]
		if len(audioParts) > 1 {
			aLabel = g.label("acat")
			g.add(fmt.Sprintf("%sconcat=n=%d:v=0:a=1[%s]", brackets(audioParts), len(audioParts), aLabel))
		}
	}

	return g.graph(), vLabel, aLabel
}

func partTrim(p plan.Part) string {
	if p.Start > 0 {
		return fmt.Sprintf("trim=start=%s:end=%s", formatFloat(p.Start), formatFloat(p.Start+p.Duration))
	}
	return fmt.Sprintf("trim=duration=%s", formatFloat(p.Duration))
}

func partATrim(p plan.Part) string {
	if p.Start > 0 {
		return fmt.Sprintf("atrim=start=%s:end=%s", formatFloat(p.Start), formatFloat(p.Start+p.Duration))
	}
	return fmt.Sprintf("atrim=duration=%s", formatFloat(p.Duration))
}

func anyPartSilent(parts []plan.Part) bool {
	for _, p := range parts {
		if !p.HasAudio {
			return true
		}
	}
	return false
}

func brackets(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString("[")
		b.WriteString(l)
		b.WriteString("]")
	}
	return b.String()
}
