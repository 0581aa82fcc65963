package render

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// watchdogInterval is how long the encoder may stay silent before the
// last known status is re-emitted.
const watchdogInterval = 15 * time.Second

// Status is a snapshot of encoder progress parsed from ffmpeg output.
type Status struct {
	Frame int64
	FPS   float64
	Time  float64
	Speed string
}

// ProgressFunc receives the monotonic fraction of the expected output
// duration rendered so far, plus the latest parsed status.
type ProgressFunc func(fraction float64, status Status)

// progressWatcher is an io.Writer fed ffmpeg's stderr. It understands
// both the classic status line and -progress key=value output. A
// watchdog goroutine re-emits the last status during encoder silence
// so heartbeat consumers can tell a slow encode from a hung one.
type progressWatcher struct {
	total    float64
	onUpdate ProgressFunc

	mu     sync.Mutex
	buf    []byte
	status Status
	frac   float64
	lastAt time.Time
}

func newProgressWatcher(total float64, onUpdate ProgressFunc) *progressWatcher {
	return &progressWatcher{total: total, onUpdate: onUpdate, lastAt: time.Now()}
}

func (w *progressWatcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexAny(w.buf, "\r\n")
		if idx < 0 {
			break
		}
		line := string(w.buf[:idx])
		w.buf = w.buf[idx+1:]
		w.handleLine(line)
	}
	return len(p), nil
}

// watch runs until ctx is canceled, re-emitting the last status
// whenever the encoder has been quiet for a full interval.
func (w *progressWatcher) watch(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			if time.Since(w.lastAt) >= watchdogInterval {
				w.emitLocked()
			}
			w.mu.Unlock()
		}
	}
}

func (w *progressWatcher) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	// The classic status line pads values ("frame=  214 fps= 30").
	for strings.Contains(line, "= ") {
		line = strings.ReplaceAll(line, "= ", "=")
	}

	updated := false
	for _, tok := range strings.Fields(line) {
		key, val, ok := strings.Cut(tok, "=")
		if !ok || val == "" || val == "N/A" {
			continue
		}
		switch key {
		case "frame":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				w.status.Frame = n
				updated = true
			}
		case "fps":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				w.status.FPS = f
				updated = true
			}
		case "time", "out_time":
			if secs, ok := parseFFmpegTime(val); ok {
				w.status.Time = secs
				updated = true
			}
		case "out_time_ms":
			// Despite the name this key carries microseconds.
			if us, err := strconv.ParseInt(val, 10, 64); err == nil && us >= 0 {
				w.status.Time = float64(us) / 1e6
				updated = true
			}
		case "speed":
			w.status.Speed = val
			updated = true
		}
	}

	if updated {
		w.lastAt = time.Now()
		w.emitLocked()
	}
}

func (w *progressWatcher) emitLocked() {
	if w.total > 0 {
		if frac := clampFloat(w.status.Time/w.total, 0, 1); frac > w.frac {
			w.frac = frac
		}
	}
	if w.onUpdate != nil {
		w.onUpdate(w.frac, w.status)
	}
}

// parseFFmpegTime parses "HH:MM:SS.fff" timestamps, falling back to
// plain seconds.
func parseFFmpegTime(v string) (float64, bool) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f, true
		}
		return 0, false
	}

	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || s < 0 {
		return 0, false
	}
	return float64(h)*3600 + float64(m)*60 + s, true
}
