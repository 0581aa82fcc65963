package mediainfo

import "strings"

// ParseError captures a single problem decoding probe output.
type ParseError struct {
	Field   string
	Message string
}

func (e ParseError) Error() string {
	if e.Field != "" {
		return strings.TrimSpace(e.Field + ": " + e.Message)
	}
	return strings.TrimSpace(e.Message)
}
