package search

import "errors"

var (
	// ErrBusy is returned when an operation is started while another one is
	// still running on the same session.
	ErrBusy = errors.New("search session is busy")
	// ErrNoPreviousSearch is returned by the repeat operations before any
	// search was configured.
	ErrNoPreviousSearch = errors.New("no previous search to repeat")
)

// SearchError represents a search error.
type SearchError struct {
	Message string
}

func (e *SearchError) Error() string {
	return e.Message
}
