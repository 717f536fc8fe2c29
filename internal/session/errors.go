package session

import "errors"

var (
	// ErrEmptyQuestion rejects a blank submission before any network call
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrNotConnected rejects a submission while the service is unreachable
	ErrNotConnected = errors.New("not connected to the server")
	// ErrRequestInFlight rejects a submission while another is outstanding
	ErrRequestInFlight = errors.New("a request is already in progress")
	// ErrRetryThrottled is returned when manual connection checks come too fast
	ErrRetryThrottled = errors.New("connection check throttled, try again shortly")
	// ErrNotStarted is returned by calls made before Start
	ErrNotStarted = errors.New("session not started")
	// ErrClosed is returned once the controller has been closed
	ErrClosed = errors.New("session closed")
)
