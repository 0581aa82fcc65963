// Package material scans caller-supplied folders for raw video and
// narration clips, probes them through ffprobe, and groups them into
// ordered scenes for the selection stage.
package material

// Folder is one material root supplied by the caller. ExtractMode is
// carried through to every scene the folder yields.
type Folder struct {
	Path         string
	DisplayName  string
	ExtractMode  string
	IsShortcut   bool
	OriginalPath string
}

// ClipInfo describes one probed media file. Duration is in seconds.
type ClipInfo struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	FPS      float64 `json:"fps,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	HasAudio bool    `json:"has_audio,omitempty"`
}

// Scene is one ordered material segment: the videos eligible for
// selection plus any narration audio found beside them.
type Scene struct {
	Key          string
	Videos       []ClipInfo
	Audios       []ClipInfo
	ExtractMode  string
	SegmentIndex int
}

// HasNarration reports whether the scene carries narration audio.
func (s Scene) HasNarration() bool {
	return len(s.Audios) > 0
}
