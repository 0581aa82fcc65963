// Package config defines the persisted tool settings and their YAML
// schema. Settings load from ~/.videomix/settings.yaml with zero
// values backfilled from defaults, so a partial file or no file at
// all always yields a usable configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extraction modes for a material folder.
const (
	ExtractSingle = "single_video"
	ExtractMulti  = "multi_video"
)

// Watermark corner positions.
const (
	PositionTopLeft     = "top-left"
	PositionTopRight    = "top-right"
	PositionBottomLeft  = "bottom-left"
	PositionBottomRight = "bottom-right"
)

// Hardware acceleration policies.
const (
	HardwareAuto = "auto"
	HardwareNone = "none"
)

// Settings captures the rendering, audio, transition, watermark and
// output configuration for batch runs.
type Settings struct {
	Version    int                `yaml:"version"`
	Video      VideoSettings      `yaml:"video"`
	Audio      AudioSettings      `yaml:"audio"`
	Transition TransitionSettings `yaml:"transition"`
	Encode     EncodeSettings     `yaml:"encode"`
	Watermark  WatermarkSettings  `yaml:"watermark"`
	Output     OutputSettings     `yaml:"output"`
	Paths      PathSettings       `yaml:"paths"`
}

// VideoSettings contains target sizing and bitrate information.
type VideoSettings struct {
	Resolution  string `yaml:"resolution"`
	BitrateKbps int    `yaml:"bitrate_kbps"`
	FPS         int    `yaml:"fps"`
}

// Dimensions parses the WxH resolution string. Unparseable values
// fall back to the portrait default.
func (v VideoSettings) Dimensions() (int, int) {
	w, h, err := ParseResolution(v.Resolution)
	if err != nil {
		return 1080, 1920
	}
	return w, h
}

// AudioSettings describes narration and background-music mixing.
type AudioSettings struct {
	VoiceVolume float64 `yaml:"voice_volume"`
	BGMVolume   float64 `yaml:"bgm_volume"`
}

// TransitionSettings selects the boundary effect between scenes.
type TransitionSettings struct {
	Name        string  `yaml:"name"`
	DurationSec float64 `yaml:"duration_s"`
}

// EncodeSettings controls encoder negotiation.
type EncodeSettings struct {
	HardwareAccel string `yaml:"hardware_accel"`
	Encoder       string `yaml:"encoder"`
	Preset        string `yaml:"preset"`
	Threads       int    `yaml:"threads"`
}

// WatermarkSettings configures the optional timestamp overlay pass.
type WatermarkSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Prefix   string `yaml:"prefix"`
	FontSize int    `yaml:"font_size"`
	Color    string `yaml:"color"`
	Position string `yaml:"position"`
	OffsetX  int    `yaml:"offset_x"`
	OffsetY  int    `yaml:"offset_y"`
}

// OutputSettings controls batch size and naming.
type OutputSettings struct {
	Count            int     `yaml:"count"`
	NameTemplate     string  `yaml:"name_template"`
	SceneDurationSec float64 `yaml:"scene_duration_s"`
}

// PathSettings holds filesystem overrides.
type PathSettings struct {
	TempDir string `yaml:"temp_dir"`
}

// Default returns the baseline settings.
func Default() Settings {
	return Settings{
		Version: 1,
		Video: VideoSettings{
			Resolution:  "1080x1920",
			BitrateKbps: 5000,
			FPS:         30,
		},
		Audio: AudioSettings{
			VoiceVolume: 1.0,
			BGMVolume:   0.5,
		},
		Transition: TransitionSettings{
			Name:        "random",
			DurationSec: 0.5,
		},
		Encode: EncodeSettings{
			HardwareAccel: HardwareAuto,
			Preset:        "medium",
			Threads:       4,
		},
		Watermark: WatermarkSettings{
			Enabled:  false,
			Prefix:   "",
			FontSize: 36,
			Color:    "#FFFFFF",
			Position: PositionBottomRight,
			OffsetX:  10,
			OffsetY:  10,
		},
		Output: OutputSettings{
			Count:            1,
			NameTemplate:     "mix_{index}",
			SceneDurationSec: 5.0,
		},
	}
}

// Load reads the YAML settings from disk if present, otherwise
// returns the defaults.
func Load(path string) (Settings, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s := Default()
			s.ApplyDefaults()
			return s, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(contents, &s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	s.ApplyDefaults()
	return s, nil
}

// ApplyDefaults ensures fields the YAML omitted fall back to sensible
// values.
func (s *Settings) ApplyDefaults() {
	defaults := Default()

	if s.Version == 0 {
		s.Version = defaults.Version
	}
	if s.Video.Resolution == "" {
		s.Video.Resolution = defaults.Video.Resolution
	}
	if s.Video.BitrateKbps == 0 {
		s.Video.BitrateKbps = defaults.Video.BitrateKbps
	}
	if s.Video.FPS == 0 {
		s.Video.FPS = defaults.Video.FPS
	}
	if s.Audio.VoiceVolume == 0 {
		s.Audio.VoiceVolume = defaults.Audio.VoiceVolume
	}
	if s.Audio.BGMVolume == 0 {
		s.Audio.BGMVolume = defaults.Audio.BGMVolume
	}
	if s.Transition.Name == "" {
		s.Transition.Name = defaults.Transition.Name
	}
	if s.Transition.DurationSec == 0 {
		s.Transition.DurationSec = defaults.Transition.DurationSec
	}
	if s.Encode.HardwareAccel == "" {
		s.Encode.HardwareAccel = defaults.Encode.HardwareAccel
	}
	if s.Encode.Preset == "" {
		s.Encode.Preset = defaults.Encode.Preset
	}
	if s.Encode.Threads == 0 {
		s.Encode.Threads = defaults.Encode.Threads
	}
	if s.Watermark.FontSize == 0 {
		s.Watermark.FontSize = defaults.Watermark.FontSize
	}
	if s.Watermark.Color == "" {
		s.Watermark.Color = defaults.Watermark.Color
	}
	if s.Watermark.Position == "" {
		s.Watermark.Position = defaults.Watermark.Position
	}
	if s.Output.Count == 0 {
		s.Output.Count = defaults.Output.Count
	}
	if s.Output.NameTemplate == "" {
		s.Output.NameTemplate = defaults.Output.NameTemplate
	}
	if s.Output.SceneDurationSec == 0 {
		s.Output.SceneDurationSec = defaults.Output.SceneDurationSec
	}
}

// Marshal returns the YAML encoding of the settings.
func (s Settings) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return buf, nil
}

// Save writes the settings file, creating it if missing.
func (s Settings) Save(path string) error {
	buf, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// ParseResolution splits a "WxH" string into dimensions.
func ParseResolution(value string) (int, int, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	w, h, ok := strings.Cut(value, "x")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q is not in WxH form", value)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("resolution %q has invalid width", value)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("resolution %q has invalid height", value)
	}
	return width, height, nil
}
