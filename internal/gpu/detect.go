package gpu

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"videomix/internal/execx"
)

// Detector probes the machine for a usable hardware encoder and builds
// a Config describing what it found.
type Detector struct {
	Runner    execx.Runner
	FFmpeg    string
	NvidiaSMI string
	Log       zerolog.Logger
	Now       func() time.Time
}

func (d Detector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Detector) nvidiaSMI() string {
	if d.NvidiaSMI != "" {
		return d.NvidiaSMI
	}
	return "nvidia-smi"
}

// Detect probes vendors in preference order NVIDIA, Intel, AMD and
// falls back to software when no hardware encoder passes a test
// encode. The returned config is stamped for this machine but not
// persisted; callers decide whether to Save it.
func (d Detector) Detect(ctx context.Context) (Config, error) {
	cfg := DefaultConfig()

	if name, ok := d.queryNVIDIAName(ctx); ok {
		cfg.DetectedVendor = VendorNVIDIA
		cfg.DetectedGPU = name
		cfg.DriverVersion = d.queryDriverVersion(ctx)
		if TestEncoder(ctx, d.Runner, d.FFmpeg, EncoderNVENC) {
			cfg.UseHardwareAcceleration = true
			cfg.Encoder = EncoderNVENC
			cfg.CompatibilityMode = needsCompatMode(cfg.DriverVersion)
			d.Log.Info().
				Str("gpu", name).
				Str("driver", cfg.DriverVersion).
				Bool("compat", cfg.CompatibilityMode).
				Msg("nvenc encoder available")
		} else {
			d.Log.Warn().Str("gpu", name).Msg("nvidia gpu present but nvenc test encode failed")
		}
	} else if TestEncoder(ctx, d.Runner, d.FFmpeg, EncoderQSV) {
		cfg.UseHardwareAcceleration = true
		cfg.Encoder = EncoderQSV
		cfg.DetectedVendor = VendorIntel
		d.Log.Info().Msg("intel quicksync encoder available")
	} else if TestEncoder(ctx, d.Runner, d.FFmpeg, EncoderAMF) {
		cfg.UseHardwareAcceleration = true
		cfg.Encoder = EncoderAMF
		cfg.DetectedVendor = VendorAMD
		d.Log.Info().Msg("amd amf encoder available")
	} else {
		d.Log.Info().Msg("no hardware encoder found, using software encoding")
	}

	cfg.stamp(d.now())
	return cfg, nil
}

// queryNVIDIAName asks nvidia-smi for the first GPU's product name.
// Output looks like "GPU 0: NVIDIA GeForce RTX 3060 (UUID: GPU-...)".
func (d Detector) queryNVIDIAName(ctx context.Context) (string, bool) {
	res, err := d.Runner.Run(ctx, d.nvidiaSMI(), []string{"-L"}, execx.RunOptions{})
	if err != nil || res.ExitCode != 0 {
		return "", false
	}
	line := firstNonEmptyLine(string(res.Stdout))
	if line == "" {
		return "", false
	}
	return parseGPUName(line), true
}

// queryDriverVersion asks nvidia-smi for the driver version string,
// e.g. "516.94". Empty on failure; detection proceeds without it.
func (d Detector) queryDriverVersion(ctx context.Context) string {
	res, err := d.Runner.Run(ctx, d.nvidiaSMI(),
		[]string{"--query-gpu=driver_version", "--format=csv,noheader"},
		execx.RunOptions{})
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	return firstNonEmptyLine(string(res.Stdout))
}

// parseGPUName strips the "GPU N: " prefix and the trailing UUID
// parenthetical from an nvidia-smi -L line.
func parseGPUName(line string) string {
	name := line
	if idx := strings.Index(name, ": "); idx >= 0 {
		name = name[idx+2:]
	}
	if idx := strings.Index(name, " (UUID"); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// needsCompatMode reports whether the driver is too old for the
// standard NVENC parameter set. Unknown versions stay in compat mode.
func needsCompatMode(driverVersion string) bool {
	major := driverMajor(driverVersion)
	if major == 0 {
		return true
	}
	return major < compatDriverFloor
}

func driverMajor(version string) int {
	version = strings.TrimSpace(version)
	if version == "" {
		return 0
	}
	head, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
