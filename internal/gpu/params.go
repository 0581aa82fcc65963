package gpu

import (
	"fmt"
	"sort"
)

// Strategy is one rung of the encode fallback ladder: an encoder plus
// the full video parameter set to try it with.
type Strategy struct {
	Name      string
	Encoder   string
	VideoArgs []string
}

// Ladder strategy names.
const (
	StrategyHardwareStandard = "hardware-standard"
	StrategyHardwareCompat   = "hardware-compat"
	StrategySoftware         = "software"
)

// EncodeParams carries the per-job knobs the strategies fold into
// their argument sets.
type EncodeParams struct {
	BitrateKbps int
	FPS         int
	Preset      string
}

// Strategies returns the ordered fallback ladder for this profile.
// Hardware rungs appear only when the profile selected a hardware
// encoder; a profile already in compatibility mode skips the standard
// rung. Software is always the last rung.
func (c Config) Strategies(p EncodeParams) []Strategy {
	software := Strategy{
		Name:      StrategySoftware,
		Encoder:   EncoderSoftware,
		VideoArgs: softwareArgs(p),
	}
	if !c.HardwareEligible() {
		return []Strategy{software}
	}

	var ladder []Strategy
	switch c.Encoder {
	case EncoderNVENC:
		if !c.CompatibilityMode {
			ladder = append(ladder, Strategy{
				Name:      StrategyHardwareStandard,
				Encoder:   EncoderNVENC,
				VideoArgs: c.withExtra(nvencStandardArgs(p)),
			})
		}
		ladder = append(ladder, Strategy{
			Name:      StrategyHardwareCompat,
			Encoder:   EncoderNVENC,
			VideoArgs: c.withExtra(nvencCompatArgs(p)),
		})
	case EncoderQSV:
		ladder = append(ladder, Strategy{
			Name:      StrategyHardwareStandard,
			Encoder:   EncoderQSV,
			VideoArgs: c.withExtra(qsvArgs(p)),
		})
	case EncoderAMF:
		ladder = append(ladder, Strategy{
			Name:      StrategyHardwareStandard,
			Encoder:   EncoderAMF,
			VideoArgs: c.withExtra(amfArgs(p)),
		})
	}
	return append(ladder, software)
}

// nvencStandardArgs is the quality-first NVENC parameter set for
// recent drivers.
func nvencStandardArgs(p EncodeParams) []string {
	return append([]string{
		"-c:v", EncoderNVENC,
		"-preset", "p2",
		"-tune", "hq",
		"-profile:v", "high",
		"-rc", "vbr",
		"-cq", "19",
		"-b:v", bitrate(p),
		"-spatial-aq", "1",
		"-temporal-aq", "1",
		"-gpu", "0",
	}, gopArgs(EncoderNVENC)...)
}

// nvencCompatArgs is the reduced parameter set accepted by older
// NVENC driver generations.
func nvencCompatArgs(p EncodeParams) []string {
	return append([]string{
		"-c:v", EncoderNVENC,
		"-preset", "p4",
		"-profile:v", "main",
		"-b:v", bitrate(p),
		"-spatial-aq", "1",
		"-temporal-aq", "1",
		"-gpu", "0",
	}, gopArgs(EncoderNVENC)...)
}

func qsvArgs(p EncodeParams) []string {
	return append([]string{
		"-c:v", EncoderQSV,
		"-preset", "medium",
		"-global_quality", "23",
		"-b:v", bitrate(p),
	}, gopArgs(EncoderQSV)...)
}

func amfArgs(p EncodeParams) []string {
	return append([]string{
		"-c:v", EncoderAMF,
		"-quality", "balanced",
		"-usage", "transcoding",
		"-b:v", bitrate(p),
	}, gopArgs(EncoderAMF)...)
}

// softwareArgs targets constant quality with the configured bitrate as
// a ceiling, so software output stays comparable to the hardware rungs.
func softwareArgs(p EncodeParams) []string {
	preset := p.Preset
	if preset == "" {
		preset = "medium"
	}
	return append([]string{
		"-c:v", EncoderSoftware,
		"-preset", preset,
		"-crf", "23",
		"-maxrate", bitrate(p),
		"-bufsize", fmt.Sprintf("%dk", 2*bitrateKbps(p)),
	}, gopArgs(EncoderSoftware)...)
}

// gopArgs keeps keyframe cadence predictable so transition regions
// land on clean GOP boundaries. Scene-cut insertion is only an x264
// option.
func gopArgs(encoder string) []string {
	args := []string{"-g", "60", "-keyint_min", "30"}
	if encoder == EncoderSoftware {
		args = append(args, "-sc_threshold", "40")
	}
	return args
}

// AudioArgs is the fixed AAC output audio parameter set.
func AudioArgs() []string {
	return []string{"-c:a", "aac", "-b:a", "192k"}
}

// withExtra appends the profile's user-supplied extra parameters in
// deterministic key order.
func (c Config) withExtra(args []string) []string {
	if len(c.ExtraParams) == 0 {
		return args
	}
	keys := make([]string, 0, len(c.ExtraParams))
	for k := range c.ExtraParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, c.ExtraParams[k])
	}
	return args
}

func bitrateKbps(p EncodeParams) int {
	if p.BitrateKbps <= 0 {
		return 5000
	}
	return p.BitrateKbps
}

func bitrate(p EncodeParams) string {
	return fmt.Sprintf("%dk", bitrateKbps(p))
}
