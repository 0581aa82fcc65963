package mediainfo

import (
	"errors"
	"math"
	"testing"
)

const sampleProbe = `{
  "format": {
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "format_long_name": "QuickTime / MOV",
    "duration": "12.480000",
    "bit_rate": "5012345"
  },
  "streams": [
    {
      "index": 0,
      "codec_type": "video",
      "codec_name": "h264",
      "width": 1920,
      "height": 1080,
      "r_frame_rate": "30000/1001",
      "duration": "12.480000",
      "nb_frames": "374"
    },
    {
      "index": 1,
      "codec_type": "audio",
      "codec_name": "aac",
      "r_frame_rate": "0/0",
      "duration": "12.432000"
    }
  ]
}`

func TestParseSample(t *testing.T) {
	info, err := Parse([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if info.FormatName != "mov,mp4,m4a,3gp,3g2,mj2" {
		t.Fatalf("unexpected format name %q", info.FormatName)
	}
	if info.Duration != 12.48 {
		t.Fatalf("unexpected duration %v", info.Duration)
	}
	if info.BitRate != 5012345 {
		t.Fatalf("unexpected bit rate %d", info.BitRate)
	}

	video, ok := info.FirstVideo()
	if !ok {
		t.Fatal("expected a video stream")
	}
	if video.Width != 1920 || video.Height != 1080 {
		t.Fatalf("unexpected dimensions %dx%d", video.Width, video.Height)
	}
	fps := video.FPS()
	if math.Abs(fps-29.97) > 0.01 {
		t.Fatalf("unexpected fps %v", fps)
	}

	if !info.HasAudio() {
		t.Fatal("expected audio stream")
	}
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(nil)
	if err == nil {
		t.Fatal("expected error for empty input")
	}
	var perr ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %T", err)
	}
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"format": `))
	if err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestDurationFallbackChain(t *testing.T) {
	cases := []struct {
		name string
		json string
		want float64
	}{
		{
			name: "stream duration when format omits it",
			json: `{"format":{"format_name":"mp4"},"streams":[{"index":0,"codec_type":"video","duration":"8.5"}]}`,
			want: 8.5,
		},
		{
			name: "frame count over fps when durations missing",
			json: `{"format":{"format_name":"mp4"},"streams":[{"index":0,"codec_type":"video","r_frame_rate":"25/1","nb_frames":"250"}]}`,
			want: 10,
		},
		{
			name: "audio stream duration for audio-only files",
			json: `{"format":{"format_name":"mp3"},"streams":[{"index":0,"codec_type":"audio","duration":"33.1"}]}`,
			want: 33.1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, err := Parse([]byte(tc.json))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if math.Abs(info.Duration-tc.want) > 1e-9 {
				t.Fatalf("duration = %v, want %v", info.Duration, tc.want)
			}
		})
	}
}

func TestRequireDuration(t *testing.T) {
	info, err := Parse([]byte(`{"format":{"format_name":"mp4"},"streams":[{"index":0,"codec_type":"video"}]}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if _, err := info.RequireDuration(); !errors.Is(err, ErrNoDuration) {
		t.Fatalf("expected ErrNoDuration, got %v", err)
	}
}

func TestFPSParsing(t *testing.T) {
	cases := []struct {
		rate string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97002997},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
	}
	for _, tc := range cases {
		s := Stream{RFrameRate: tc.rate}
		got := s.FPS()
		if math.Abs(got-tc.want) > 0.001 {
			t.Fatalf("FPS(%q) = %v, want %v", tc.rate, got, tc.want)
		}
	}
}
