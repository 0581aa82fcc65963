package batch

import (
	"errors"
	"fmt"
)

// ErrInterrupted marks a run ended by Stop or context cancellation.
// It is an outcome, not a failure: partial results are still reported.
var ErrInterrupted = errors.New("batch interrupted")

// MaterialError aborts the whole batch: the material folders or the
// output directory are unusable before any output is attempted.
type MaterialError struct {
	Path string
	Err  error
}

func (e *MaterialError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("material %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("material: %v", e.Err)
}

func (e *MaterialError) Unwrap() error { return e.Err }

// SelectionError fails a single output: no scene yielded a usable
// selection for it. The batch continues with the next output.
type SelectionError struct {
	Output int
	Err    error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("output %d selection: %v", e.Output, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// EncodeError fails a single output after the render pipeline walked
// the full strategy ladder without producing a validated file.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// SceneSkipped records a scene dropped from one output. Skips are
// fatal to the output only when they leave zero selections.
type SceneSkipped struct {
	Key    string
	Reason string
}
