package vcr

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned by Begin when a session is already
	// active on the same VCR, or when another session is installed as
	// http.DefaultTransport.
	ErrSessionActive = errors.New("vcr: a cassette session is already active")

	// ErrSessionClosed is returned for requests made through a session after
	// it ended.
	ErrSessionClosed = errors.New("vcr: cassette session has ended")
)

// UnmatchedRequestError is returned when a request has no recorded
// interaction and the mode does not allow the network to be used.
//
// Because the error is returned from the transport, http.Client wraps it in
// a *url.Error; use errors.As to detect it.
type UnmatchedRequestError struct {
	Cassette string
	Mode     Mode
	Method   string
	URL      string
}

// Error implements the error interface.
func (e *UnmatchedRequestError) Error() string {
	return fmt.Sprintf("vcr: no recorded interaction for %s %s in cassette %q (mode %s)", e.Method, e.URL, e.Cassette, e.Mode)
}
