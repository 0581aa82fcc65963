package tui

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgressSink adapts a tea send callback to the batch progress
// signature so the orchestrator can feed a running ComposeModel
// without knowing about bubbletea.
func ProgressSink(send func(tea.Msg)) func(message string, percent float64) {
	return func(message string, percent float64) {
		send(StatusMsg{Text: message, Percent: percent})
	}
}

// PlainSink writes progress updates as plain lines, one per message,
// for terminals without interactive rendering. Percentages print with
// no decimals to keep logs diffable.
func PlainSink(w io.Writer) func(message string, percent float64) {
	return func(message string, percent float64) {
		fmt.Fprintf(w, "%3.0f%% %s\n", percent, message)
	}
}
