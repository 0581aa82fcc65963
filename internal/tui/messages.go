package tui

// StatusMsg carries one progress update from the batch: the latest
// message line and the overall percentage in [0,100].
type StatusMsg struct {
	Text    string
	Percent float64
}

// DoneMsg signals that the background work finished. Err is nil on
// success and carries the batch error otherwise.
type DoneMsg struct {
	Err error
}
