// Package mediainfo parses ffprobe JSON output into typed media
// metadata. It performs no process execution; callers feed it the
// bytes produced by `ffprobe -show_format -show_streams -print_format
// json` and receive normalized duration, dimension, and frame-rate
// values with a defined fallback chain for containers that omit
// fields.
package mediainfo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Info is the normalized result of probing one media file.
type Info struct {
	FormatName     string
	FormatLongName string
	Duration       float64
	BitRate        int64
	Streams        []Stream
}

// Stream describes a single elementary stream within the container.
type Stream struct {
	Index      int
	CodecType  string
	CodecName  string
	Width      int
	Height     int
	RFrameRate string
	Duration   float64
	NbFrames   int64
}

type rawOutput struct {
	Format  rawFormat   `json:"format"`
	Streams []rawStream `json:"streams"`
}

type rawFormat struct {
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	Duration       string `json:"duration"`
	BitRate        string `json:"bit_rate"`
}

type rawStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	Duration   string `json:"duration"`
	NbFrames   string `json:"nb_frames"`
}

// Parse decodes ffprobe JSON. A decode failure or empty input returns
// a ParseError; missing optional fields are tolerated and resolved
// through the duration fallback chain instead.
func Parse(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ParseError{Field: "output", Message: "empty probe output"}
	}

	var raw rawOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return Info{}, ParseError{Field: "output", Message: fmt.Sprintf("decode json: %v", err)}
	}

	info := Info{
		FormatName:     raw.Format.FormatName,
		FormatLongName: raw.Format.FormatLongName,
		Duration:       parseFloat(raw.Format.Duration),
		BitRate:        parseInt(raw.Format.BitRate),
		Streams:        make([]Stream, 0, len(raw.Streams)),
	}

	for _, rs := range raw.Streams {
		info.Streams = append(info.Streams, Stream{
			Index:      rs.Index,
			CodecType:  rs.CodecType,
			CodecName:  rs.CodecName,
			Width:      rs.Width,
			Height:     rs.Height,
			RFrameRate: rs.RFrameRate,
			Duration:   parseFloat(rs.Duration),
			NbFrames:   parseInt(rs.NbFrames),
		})
	}

	if info.Duration <= 0 {
		info.Duration = info.resolveDuration()
	}

	return info, nil
}

// FirstVideo returns the first stream with codec_type "video".
func (i Info) FirstVideo() (Stream, bool) {
	return i.firstOfType("video")
}

// FirstAudio returns the first stream with codec_type "audio".
func (i Info) FirstAudio() (Stream, bool) {
	return i.firstOfType("audio")
}

// HasVideo reports whether any video stream is present.
func (i Info) HasVideo() bool {
	_, ok := i.FirstVideo()
	return ok
}

// HasAudio reports whether any audio stream is present.
func (i Info) HasAudio() bool {
	_, ok := i.FirstAudio()
	return ok
}

func (i Info) firstOfType(codecType string) (Stream, bool) {
	for _, s := range i.Streams {
		if s.CodecType == codecType {
			return s, true
		}
	}
	return Stream{}, false
}

// resolveDuration walks the fallback chain: container duration,
// first video stream duration, then frame count divided by frame
// rate when both are known.
func (i Info) resolveDuration() float64 {
	if i.Duration > 0 {
		return i.Duration
	}
	video, ok := i.FirstVideo()
	if !ok {
		if audio, ok := i.FirstAudio(); ok && audio.Duration > 0 {
			return audio.Duration
		}
		return 0
	}
	if video.Duration > 0 {
		return video.Duration
	}
	fps := video.FPS()
	if video.NbFrames > 0 && fps > 0 {
		return float64(video.NbFrames) / fps
	}
	return 0
}

// FPS evaluates the stream's r_frame_rate fraction ("30000/1001").
// Malformed or zero-denominator values yield 0.
func (s Stream) FPS() float64 {
	rate := strings.TrimSpace(s.RFrameRate)
	if rate == "" {
		return 0
	}
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return parseFloat(rate)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ErrNoDuration is returned by RequireDuration when no fallback
// resolves a positive duration.
var ErrNoDuration = errors.New("media has no resolvable duration")

// RequireDuration returns the resolved duration or ErrNoDuration.
func (i Info) RequireDuration() (float64, error) {
	d := i.Duration
	if d <= 0 {
		d = i.resolveDuration()
	}
	if d <= 0 {
		return 0, ErrNoDuration
	}
	return d, nil
}
