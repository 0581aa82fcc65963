package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	tickInterval = 150 * time.Millisecond

	// logKeep is how many recent status lines stay on screen.
	logKeep = 8
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg drives the spinner.
type tickMsg time.Time

// ComposeModel renders a running batch: an overall progress bar, the
// most recent status lines, and a stop hint. Pressing q requests a
// cooperative stop through the configured callback; the view stays up
// until the batch unwinds and sends DoneMsg.
type ComposeModel struct {
	title string
	stop  func()

	bar      progress.Model
	percent  float64
	log      []string
	width    int
	stopping bool
	done     bool
	err      error
	tick     int
}

// NewComposeModel creates the batch progress view. stop is invoked at
// most once when the user requests an early stop; pass nil to disable
// stopping.
func NewComposeModel(title string, stop func()) ComposeModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return ComposeModel{
		title: title,
		stop:  stop,
		bar:   bar,
	}
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m ComposeModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m ComposeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case StatusMsg:
		m.percent = msg.Percent
		m.log = append(m.log, msg.Text)
		if len(m.log) > logKeep {
			m.log = m.log[len(m.log)-logKeep:]
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 12
		if w < 20 {
			w = 20
		}
		if w > 60 {
			w = 60
		}
		m.bar.Width = w
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// The batch must unwind cooperatively so no partial
			// output is left behind; quit happens on DoneMsg.
			if !m.stopping {
				m.stopping = true
				if m.stop != nil {
					m.stop()
				}
			}
			return m, nil
		}
	}
	return m, nil
}

// View satisfies the tea.Model interface.
func (m ComposeModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	for i, line := range m.log {
		if m.width > 8 {
			line = TruncateWithEllipsis(line, m.width-4)
		}
		if i == len(m.log)-1 && !m.done {
			b.WriteString("  " + line)
		} else {
			b.WriteString(FaintStyle.Render("  " + line))
		}
		b.WriteByte('\n')
	}
	if len(m.log) > 0 {
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "  %s %3.0f%%\n", m.bar.ViewAs(m.percent/100), m.percent)

	if m.done {
		if m.err != nil {
			b.WriteString("\n" + StatusStyle("error").Render("  "+m.err.Error()) + "\n")
		}
		return b.String()
	}

	spinner := spinnerFrames[m.tick%len(spinnerFrames)]
	if m.stopping {
		b.WriteString("\n" + StatusStyle("stopping").Render(fmt.Sprintf("  %s stopping after the current step...", spinner)) + "\n")
	} else {
		fmt.Fprintf(&b, "\n  %s %s\n", spinner, FaintStyle.Render("press q to stop"))
	}
	return b.String()
}

// Stopping reports whether an early stop has been requested.
func (m ComposeModel) Stopping() bool {
	return m.stopping
}

// Done reports whether the model has finished.
func (m ComposeModel) Done() bool {
	return m.done
}

// Err returns the batch error, if any.
func (m ComposeModel) Err() error {
	return m.err
}

// NonEmptyOrDash returns "-" for empty or whitespace-only strings.
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis truncates a string and adds "..." when it
// exceeds max bytes.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
