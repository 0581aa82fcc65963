package batch

// State is the externally visible phase of a batch run.
type State string

const (
	StateInit         State = "INIT"
	StateScanning     State = "SCANNING"
	StateSelecting    State = "SELECTING"
	StateMerging      State = "MERGING"
	StateEncoding     State = "ENCODING"
	StateWatermarking State = "WATERMARKING"
	StateDone         State = "DONE"
	StateStopping     State = "STOPPING"
	StateStopped      State = "STOPPED"
	StateFailed       State = "FAILED"
)

// Terminal reports whether the run has finished in this state.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateStopped, StateFailed:
		return true
	}
	return false
}
