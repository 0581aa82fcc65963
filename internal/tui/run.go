package tui

import (
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RunWithWork starts a bubbletea program for model, launches workFn in
// a goroutine and blocks until the program exits. workFn receives a
// send callback bridging into the program; its return value arrives as
// DoneMsg once it finishes. The returned error is the workFn error, or
// the program error if rendering itself failed.
func RunWithWork(out io.Writer, model ComposeModel, workFn func(send func(tea.Msg)) error) error {
	p := tea.NewProgram(model, tea.WithOutput(out))

	go func() {
		// Let bubbletea start its event loop and render the first frame.
		time.Sleep(50 * time.Millisecond)
		err := workFn(p.Send)
		p.Send(DoneMsg{Err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(ComposeModel); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
