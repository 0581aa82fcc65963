package material

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Material sub-directory names inside a scene folder.
const (
	videoDirName = "视频"
	audioDirName = "配音"
)

// scanBudget is the share of overall batch progress the scan stage
// occupies.
const scanBudget = 5.0

// ErrNoScenes is returned when scanning yields zero usable scenes.
var ErrNoScenes = errors.New("no usable material scenes found")

var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".wmv": true, ".flv": true, ".webm": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".aac": true, ".ogg": true,
	".flac": true, ".m4a": true,
}

// ProgressFunc receives human-readable stage messages and an overall
// percentage.
type ProgressFunc func(message string, percent float64)

// Scanner walks material folders and produces ordered scenes. A
// folder directly containing the material sub-directories is a single
// scene (leaf mode); otherwise each child directory, or shortcut
// resolving to one, becomes a scene of its own (parent mode).
type Scanner struct {
	Prober Prober
	Cache  *Index
	Log    zerolog.Logger
}

// Scan probes every media file under the given folders and returns
// scenes keyed for stable ordering. Unreadable files and unresolvable
// shortcuts are skipped with a warning; Scan fails only when nothing
// usable remains.
func (s *Scanner) Scan(ctx context.Context, folders []Folder, progress ProgressFunc) (map[string]Scene, error) {
	if progress == nil {
		progress = func(string, float64) {}
	}

	scenes := map[string]Scene{}
	segment := 0
	skipped := 0

	for i, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		root, err := resolveDir(folder.Path)
		if err != nil {
			skipped++
			s.Log.Warn().Str("folder", folder.Path).Err(err).Msg("material folder unusable")
			continue
		}

		name := folder.DisplayName
		if name == "" {
			name = filepath.Base(root)
		}

		if hasMaterialDirs(root) {
			scene, ok, err := s.buildScene(ctx, root, folder.ExtractMode)
			if err != nil {
				return nil, err
			}
			if ok {
				segment++
				scene.Key = name
				scene.SegmentIndex = segment
				scenes[scene.Key] = scene
			}
		} else {
			children, childSkipped := s.materialChildren(root)
			skipped += childSkipped
			for _, child := range children {
				scene, ok, err := s.buildScene(ctx, child.path, folder.ExtractMode)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				segment++
				scene.Key = fmt.Sprintf("%02d_%s", segment, child.name)
				scene.SegmentIndex = segment
				scenes[scene.Key] = scene
			}
		}

		progress(fmt.Sprintf("scanned %s", name), scanBudget*float64(i+1)/float64(len(folders)))
	}

	if skipped > 0 {
		s.Log.Warn().Int("skipped", skipped).Msg("some material entries were skipped")
	}
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}

	s.Log.Info().Int("scenes", len(scenes)).Int("folders", len(folders)).Msg("material scan complete")
	return scenes, nil
}

// SortedScenes returns scenes in scan order.
func SortedScenes(scenes map[string]Scene) []Scene {
	out := make([]Scene, 0, len(scenes))
	for _, sc := range scenes {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentIndex < out[j].SegmentIndex })
	return out
}

// buildScene probes one scene directory. ok is false when the
// directory holds no usable videos; the error reports only context
// cancellation.
func (s *Scanner) buildScene(ctx context.Context, dir, mode string) (Scene, bool, error) {
	videos, err := s.probeDir(ctx, filepath.Join(dir, videoDirName), videoExtensions)
	if err != nil {
		return Scene{}, false, err
	}
	audios, err := s.probeDir(ctx, filepath.Join(dir, audioDirName), audioExtensions)
	if err != nil {
		return Scene{}, false, err
	}

	if len(videos) == 0 {
		s.Log.Warn().Str("dir", dir).Msg("no usable videos, scene excluded")
		return Scene{}, false, nil
	}
	return Scene{Videos: videos, Audios: audios, ExtractMode: mode}, true, nil
}

func (s *Scanner) probeDir(ctx context.Context, dir string, exts map[string]bool) ([]ClipInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.Log.Warn().Str("dir", dir).Err(err).Msg("material sub-directory unreadable")
		}
		return nil, nil
	}

	var clips []ClipInfo
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		if !exts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		clip, err := s.probeOne(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.Log.Warn().Str("file", path).Err(err).Msg("unreadable media file excluded")
			continue
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

// probeOne consults the probe cache before invoking ffprobe.
func (s *Scanner) probeOne(ctx context.Context, path string) (ClipInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return ClipInfo{}, err
	}

	if s.Cache != nil {
		if clip, ok := s.Cache.Lookup(path, fi.Size(), fi.ModTime()); ok {
			return clip, nil
		}
	}

	clip, err := s.Prober.ProbeFile(ctx, path)
	if err != nil {
		return ClipInfo{}, err
	}

	if s.Cache != nil {
		s.Cache.Store(path, fi.Size(), fi.ModTime(), clip)
	}
	return clip, nil
}

type childDir struct {
	name string
	path string
}

// materialChildren enumerates scene candidates under a parent folder:
// plain directories plus shortcuts resolving to directories. Children
// arrive sorted by name from ReadDir.
func (s *Scanner) materialChildren(root string) ([]childDir, int) {
	entries, err := os.ReadDir(root)
	if err != nil {
		s.Log.Warn().Str("dir", root).Err(err).Msg("material folder unreadable")
		return nil, 1
	}

	var children []childDir
	skipped := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(root, name)

		switch {
		case entry.IsDir():
			children = append(children, childDir{name: name, path: full})
		case entry.Type()&os.ModeSymlink != 0:
			target, err := resolveDir(full)
			if err != nil {
				skipped++
				s.Log.Warn().Str("link", full).Err(err).Msg("shortcut target unusable, skipped")
				continue
			}
			children = append(children, childDir{name: name, path: target})
		case strings.EqualFold(filepath.Ext(name), ".lnk"):
			// .lnk contents are a Windows shell format; only real
			// symlinks are followed here.
			skipped++
			s.Log.Warn().Str("link", full).Msg("unresolvable .lnk shortcut skipped")
		}
	}
	return children, skipped
}

func resolveDir(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return resolved, nil
}

func hasMaterialDirs(dir string) bool {
	for _, sub := range []string{videoDirName, audioDirName} {
		if fi, err := os.Stat(filepath.Join(dir, sub)); err == nil && fi.IsDir() {
			return true
		}
	}
	return false
}
