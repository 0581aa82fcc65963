package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// KnownTransitions lists the named transition effects plus the two
// meta values accepted by settings.
var KnownTransitions = []string{
	"none", "random",
	"fade", "mirror_flip", "hue_shift", "pixelate",
	"spin_zoom", "reverse_flashback", "speed_ramp", "split_screen",
}

var knownPositions = []string{
	PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight,
}

// Validate checks settings values against their accepted ranges and
// returns structured findings ordered errors-first.
func (s Settings) Validate() []ValidationResult {
	var results []ValidationResult

	if _, _, err := ParseResolution(s.Video.Resolution); err != nil {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: err.Error(),
		})
	}
	if s.Video.BitrateKbps < 1000 || s.Video.BitrateKbps > 20000 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("bitrate %dk outside the usual 1000-20000k range", s.Video.BitrateKbps),
		})
	}
	if s.Audio.VoiceVolume < 0 || s.Audio.VoiceVolume > 2 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("voice_volume %.2f outside [0, 2]", s.Audio.VoiceVolume),
		})
	}
	if s.Audio.BGMVolume < 0 || s.Audio.BGMVolume > 2 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("bgm_volume %.2f outside [0, 2]", s.Audio.BGMVolume),
		})
	}
	if !containsString(KnownTransitions, s.Transition.Name) {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("unknown transition %q (known: %s)", s.Transition.Name, strings.Join(KnownTransitions, ", ")),
		})
	}
	if s.Transition.DurationSec <= 0 || s.Transition.DurationSec > 5 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("transition duration %.2fs outside the usual (0, 5] range", s.Transition.DurationSec),
		})
	}
	switch s.Encode.HardwareAccel {
	case HardwareAuto, HardwareNone:
	default:
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("hardware_accel must be %q or %q, got %q", HardwareAuto, HardwareNone, s.Encode.HardwareAccel),
		})
	}
	if s.Watermark.Enabled && !containsString(knownPositions, s.Watermark.Position) {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("unknown watermark position %q", s.Watermark.Position),
		})
	}
	if s.Output.Count < 1 || s.Output.Count > 500 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("output count %d outside [1, 500]", s.Output.Count),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Level == "error" && results[j].Level != "error"
	})
	return results
}

// HasErrors reports whether any finding is error-level.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
