package material

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const indexVersion = 1

// Index is the persisted probe cache. Entries are keyed by absolute
// path and invalidated when the file's size or mtime changes.
type Index struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Entry records one probed file.
type Entry struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
	ProbedAt  time.Time `json:"probed_at"`
	Clip      ClipInfo  `json:"clip"`
}

// NewIndex returns an empty probe cache.
func NewIndex() *Index {
	return &Index{
		Version: indexVersion,
		Entries: map[string]Entry{},
	}
}

// LoadIndex reads the probe cache, returning an empty structure when
// the file is missing. A corrupt file returns an empty index alongside
// the error so callers can degrade to plain probing.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewIndex(), nil
		}
		return NewIndex(), fmt.Errorf("read probe index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return NewIndex(), fmt.Errorf("decode probe index: %w", err)
	}

	idx.normalize()
	return &idx, nil
}

// SaveIndex writes the probe cache to disk atomically, creating the
// containing directory if needed.
func SaveIndex(path string, idx *Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure probe index dir: %w", err)
	}

	if idx == nil {
		idx = NewIndex()
	}
	idx.normalize()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode probe index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp probe index: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace probe index: %w", err)
	}

	return nil
}

// Lookup returns the cached clip for a file when the size and mtime
// still match.
func (idx *Index) Lookup(path string, size int64, modTime time.Time) (ClipInfo, bool) {
	if idx == nil || idx.Entries == nil {
		return ClipInfo{}, false
	}
	entry, ok := idx.Entries[path]
	if !ok {
		return ClipInfo{}, false
	}
	if entry.SizeBytes != size || !entry.ModTime.Equal(modTime) {
		return ClipInfo{}, false
	}
	return entry.Clip, true
}

// Store records a probe result for a file.
func (idx *Index) Store(path string, size int64, modTime time.Time, clip ClipInfo) {
	if idx == nil {
		return
	}
	if idx.Entries == nil {
		idx.Entries = map[string]Entry{}
	}
	idx.Entries[path] = Entry{
		Path:      path,
		SizeBytes: size,
		ModTime:   modTime,
		ProbedAt:  time.Now(),
		Clip:      clip,
	}
}

func (idx *Index) normalize() {
	if idx.Version == 0 {
		idx.Version = indexVersion
	}
	if idx.Entries == nil {
		idx.Entries = map[string]Entry{}
	}
}
