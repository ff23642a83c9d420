package apify

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidToken means the provider rejected the API token.
	ErrInvalidToken = errors.New("invalid API token")

	// ErrQuotaExceeded means the account quota is exhausted.
	ErrQuotaExceeded = errors.New("quota exceeded, check your billing")

	// ErrWaitTimeout means the run did not reach a terminal state within
	// the local wait budget. The remote run keeps going regardless.
	ErrWaitTimeout = errors.New("timed out waiting for the actor run to finish")

	// ErrNoTranscript means the run succeeded but its dataset was empty.
	ErrNoTranscript = errors.New("no transcript found, captions are likely disabled for this video")
)

// TransportError wraps a network or HTTP-level failure at submit, poll,
// fetch or abort. Never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RunFailedError means the run reached a failed terminal state on the
// provider side.
type RunFailedError struct {
	Status Status
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("actor run %s", strings.ToLower(string(e.Status)))
}
