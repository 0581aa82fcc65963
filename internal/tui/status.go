package tui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// StatusWriter renders a single spinning status line in place. It is
// meant for short setup phases that run before any real progress
// reporting exists, like encoder probing.
type StatusWriter struct {
	w    io.Writer
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	message string
	since   time.Time
}

// NewStatusWriter starts a background spinner rendering to w until
// Stop is called.
func NewStatusWriter(w io.Writer, message string) *StatusWriter {
	sw := &StatusWriter{
		w:       w,
		done:    make(chan struct{}),
		message: message,
		since:   time.Now(),
	}
	go sw.loop()
	return sw
}

// Update replaces the status message and restarts the phase timer.
func (sw *StatusWriter) Update(message string) {
	sw.mu.Lock()
	sw.message = message
	sw.since = time.Now()
	sw.mu.Unlock()
}

// Stop ends the spinner and clears the status line. Safe to call
// more than once.
func (sw *StatusWriter) Stop() {
	sw.once.Do(func() {
		close(sw.done)
		fmt.Fprint(sw.w, "\r\033[K")
	})
}

func (sw *StatusWriter) loop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			sw.mu.Lock()
			message := sw.message
			since := sw.since
			sw.mu.Unlock()

			spinner := spinnerFrames[frame%len(spinnerFrames)]
			frame++
			fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", spinner, message, humanDuration(time.Since(since)))
		}
	}
}

// humanDuration renders short elapsed times the way a status line
// wants them: ms under a second, then seconds, then minutes.
func humanDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
