package transcriber

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned by remote backends when no API key is configured.
var ErrMissingCredential = errors.New("API key not provided")

// BackendUnavailableError reports a remote service that could not be reached
// or answered with an error.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// TranscriptionError reports a local model that failed to load or run.
type TranscriptionError struct {
	Backend string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("%s transcription failed: %v", e.Backend, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
