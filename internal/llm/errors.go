package llm

import (
	"errors"
	"fmt"
)

// ErrAborted is returned when the caller cancels a stream before it ends.
var ErrAborted = errors.New("generation aborted")

// TransportError represents a connection failure or a non-success response.
// It is never retried inside the core.
type TransportError struct {
	Provider   string
	StatusCode int // zero for connection errors
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
