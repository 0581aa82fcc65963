// Package gpu owns hardware-encoder negotiation: vendor detection,
// encoder availability probing, the persisted per-machine profile,
// and the vendor parameter sets handed to ffmpeg. The profile is
// detected once outside the render loop and treated as read-only
// while encodes are in flight.
package gpu

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// GPU vendors recognized by detection.
const (
	VendorNVIDIA = "nvidia"
	VendorIntel  = "intel"
	VendorAMD    = "amd"
)

// Hardware encoder names per vendor.
const (
	EncoderNVENC    = "h264_nvenc"
	EncoderQSV      = "h264_qsv"
	EncoderAMF      = "h264_amf"
	EncoderSoftware = "libx264"
)

const (
	// profileTTL bounds how long a detection result is trusted before
	// a re-probe is suggested.
	profileTTL = 24 * time.Hour

	// compatDriverFloor is the NVIDIA driver major version below which
	// compatibility mode is forced on.
	compatDriverFloor = 516
)

// Config is the persisted hardware-encoding profile.
type Config struct {
	UseHardwareAcceleration bool              `json:"use_hardware_acceleration"`
	Encoder                 string            `json:"encoder"`
	Decoder                 string            `json:"decoder,omitempty"`
	EncodingPreset          string            `json:"encoding_preset"`
	ExtraParams             map[string]string `json:"extra_params,omitempty"`
	DetectedGPU             string            `json:"detected_gpu,omitempty"`
	DetectedVendor          string            `json:"detected_vendor,omitempty"`
	CompatibilityMode       bool              `json:"compatibility_mode"`
	DriverVersion           string            `json:"driver_version,omitempty"`

	Hostname   string    `json:"hostname,omitempty"`
	GOOS       string    `json:"goos,omitempty"`
	DetectedAt time.Time `json:"detected_at,omitempty"`
}

// DefaultConfig returns the conservative software-only profile used
// before any detection has run.
func DefaultConfig() Config {
	return Config{
		UseHardwareAcceleration: false,
		Encoder:                 EncoderSoftware,
		EncodingPreset:          "medium",
		CompatibilityMode:       true,
	}
}

// Load reads a persisted profile. A missing file returns the default
// profile with loaded=false; corrupt files return an error.
func Load(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), false, nil
		}
		return Config{}, false, fmt.Errorf("read gpu profile: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("decode gpu profile: %w", err)
	}
	return cfg, true, nil
}

// Save persists the profile as indented JSON, replacing atomically.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare gpu profile dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode gpu profile: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write gpu profile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace gpu profile: %w", err)
	}
	return nil
}

// Delete removes the persisted profile, ignoring a missing file.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsFresh reports whether the profile was detected on this machine
// recently enough to be reused without a new probe.
func (c Config) IsFresh(now time.Time) bool {
	if c.DetectedAt.IsZero() {
		return false
	}
	if now.Sub(c.DetectedAt) > profileTTL {
		return false
	}
	hostname, _ := os.Hostname()
	return c.GOOS == runtime.GOOS && c.Hostname == hostname
}

// stamp records the detection fingerprint.
func (c *Config) stamp(now time.Time) {
	hostname, _ := os.Hostname()
	c.Hostname = hostname
	c.GOOS = runtime.GOOS
	c.DetectedAt = now
}

// HardwareEligible reports whether this profile selects a hardware
// encoder.
func (c Config) HardwareEligible() bool {
	if !c.UseHardwareAcceleration {
		return false
	}
	switch c.Encoder {
	case EncoderNVENC, EncoderQSV, EncoderAMF:
		return true
	}
	return false
}
