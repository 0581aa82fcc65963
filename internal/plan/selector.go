// Package plan turns probed scenes into concrete trim instructions.
// Selection is pure bookkeeping: no file is touched until the render
// stage materializes the parts.
package plan

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"videomix/internal/config"
	"videomix/internal/material"
)

// minTrimDuration is the smallest trim worth cutting; anything shorter
// keeps the whole clip.
const minTrimDuration = 0.5

// ErrNoCandidates is returned when a scene offers nothing selectable.
var ErrNoCandidates = errors.New("scene has no selectable videos")

// Part is one trimmed span of a source clip. Start and Duration are in
// seconds; Start is always 0 (head trims preserve intro context).
type Part struct {
	Path     string
	Start    float64
	Duration float64
	HasAudio bool
}

// Selection is the plan for one scene of one output video.
type Selection struct {
	FolderKey      string
	Parts          []Part
	AudioPath      string
	AudioDuration  float64
	TargetDuration float64
}

// TotalDuration sums the planned part durations.
func (s Selection) TotalDuration() float64 {
	var total float64
	for _, p := range s.Parts {
		total += p.Duration
	}
	return total
}

// TargetDuration resolves how long a scene's footage should run: the
// narration length when the scene has usable audio, otherwise the
// configured default.
func TargetDuration(scene material.Scene, defaultSceneSeconds float64) float64 {
	if scene.HasNarration() && scene.Audios[0].Duration > 0 {
		return scene.Audios[0].Duration
	}
	return defaultSceneSeconds
}

// Selector picks and trims clips to cover a scene's target duration.
// Rand is injectable for deterministic tests.
type Selector struct {
	Rand *rand.Rand
	Log  zerolog.Logger
}

// Select builds the selection for one scene. used tracks clip paths
// already consumed by this output video; Select records every path it
// takes.
func (s *Selector) Select(scene material.Scene, target float64, used map[string]bool) (Selection, error) {
	if used == nil {
		used = map[string]bool{}
	}

	var (
		sel Selection
		err error
	)
	if scene.ExtractMode == config.ExtractMulti {
		sel, err = s.selectMulti(scene, target, used)
	} else {
		sel, err = s.selectSingle(scene, target, used)
	}
	if err != nil {
		return Selection{}, err
	}

	sel.FolderKey = scene.Key
	sel.TargetDuration = target
	if scene.HasNarration() {
		sel.AudioPath = scene.Audios[0].Path
		sel.AudioDuration = scene.Audios[0].Duration
	}
	return sel, nil
}

// selectSingle picks one clip: uniformly at random among unused clips
// long enough for the target, falling back to the longest unused and
// then the longest overall.
func (s *Selector) selectSingle(scene material.Scene, target float64, used map[string]bool) (Selection, error) {
	if len(scene.Videos) == 0 {
		return Selection{}, ErrNoCandidates
	}

	var candidates []material.ClipInfo
	for _, v := range scene.Videos {
		if v.Duration >= target && !used[v.Path] {
			candidates = append(candidates, v)
		}
	}

	var chosen material.ClipInfo
	switch {
	case len(candidates) > 0:
		chosen = candidates[s.rng().Intn(len(candidates))]
	default:
		chosen = longestClip(scene.Videos, used)
		if chosen.Path == "" {
			chosen = longestClip(scene.Videos, nil)
		}
		s.Log.Debug().
			Str("scene", scene.Key).
			Str("clip", chosen.Path).
			Float64("target", target).
			Msg("no clip covers target, falling back to longest")
	}
	if chosen.Path == "" {
		return Selection{}, ErrNoCandidates
	}

	used[chosen.Path] = true
	part := Part{Path: chosen.Path, Duration: trimSpan(chosen.Duration, target), HasAudio: chosen.HasAudio}
	return Selection{Parts: []Part{part}}, nil
}

// selectMulti concatenates clips, unused first then longest first,
// head-trimming the last one so the total lands on target.
func (s *Selector) selectMulti(scene material.Scene, target float64, used map[string]bool) (Selection, error) {
	if len(scene.Videos) == 0 {
		return Selection{}, ErrNoCandidates
	}

	ordered := make([]material.ClipInfo, len(scene.Videos))
	copy(ordered, scene.Videos)
	sort.SliceStable(ordered, func(i, j int) bool {
		ui, uj := used[ordered[i].Path], used[ordered[j].Path]
		if ui != uj {
			return !ui
		}
		return ordered[i].Duration > ordered[j].Duration
	})

	var (
		parts []Part
		total float64
	)
	for _, clip := range ordered {
		if total >= target {
			break
		}
		if clip.Duration <= 0 {
			continue
		}

		span := clip.Duration
		if remaining := target - total; span > remaining {
			span = trimSpan(clip.Duration, remaining)
		}
		parts = append(parts, Part{Path: clip.Path, Duration: span, HasAudio: clip.HasAudio})
		used[clip.Path] = true
		total += span
	}

	if len(parts) == 0 {
		return Selection{}, ErrNoCandidates
	}
	return Selection{Parts: parts}, nil
}

// trimSpan clamps a trim to the clip length and refuses degenerate
// cuts: targets below the minimum keep the whole clip.
func trimSpan(clipDuration, target float64) float64 {
	if math.IsNaN(target) || target < minTrimDuration {
		return clipDuration
	}
	return math.Min(clipDuration, target)
}

func longestClip(clips []material.ClipInfo, used map[string]bool) material.ClipInfo {
	var best material.ClipInfo
	for _, c := range clips {
		if used != nil && used[c.Path] {
			continue
		}
		if c.Duration > best.Duration {
			best = c
		}
	}
	return best
}

func (s *Selector) rng() *rand.Rand {
	if s.Rand == nil {
		s.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s.Rand
}
