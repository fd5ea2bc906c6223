package session

import (
	"context"
	"errors"

	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/i18n"
	"github.com/guiyumin/urduscribe/internal/core/media"
)

var (
	// ErrInvalidInput is returned for empty uploads and unrecognized extensions.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState is returned when an operation does not fit the current state.
	ErrInvalidState = errors.New("invalid session state")
)

// Kind classifies a session failure.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindDecodeError        Kind = "decode_error"
	KindMissingCredential  Kind = "missing_credential"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindTranscriptionError Kind = "transcription_error"
	KindCancelled          Kind = "cancelled"
	KindInternal           Kind = "internal"
)

// Classify maps an error to its kind.
func Classify(err error) Kind {
	var (
		decodeErr      *media.DecodeError
		unavailableErr *transcriber.BackendUnavailableError
		transcribeErr  *transcriber.TranscriptionError
	)

	switch {
	case err == nil:
		return ""
	// a backend's own timeout arrives wrapped; only a bare context error
	// means the caller gave up
	case errors.As(err, &unavailableErr):
		return KindBackendUnavailable
	case errors.As(err, &transcribeErr):
		return KindTranscriptionError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrInvalidInput), errors.Is(err, media.ErrUnsupportedFormat):
		return KindInvalidInput
	case errors.As(err, &decodeErr):
		return KindDecodeError
	case errors.Is(err, transcriber.ErrMissingCredential):
		return KindMissingCredential
	default:
		return KindInternal
	}
}

// UserMessage renders err as a message fit for display.
// Credentials never appear in it.
func UserMessage(err error, lang string) string {
	e := i18n.T(lang).Errors
	switch Classify(err) {
	case KindInvalidInput:
		return e.InvalidInput
	case KindDecodeError:
		return e.DecodeError
	case KindMissingCredential:
		return e.MissingCredential
	case KindBackendUnavailable:
		return e.BackendUnavailable
	case KindTranscriptionError:
		return e.TranscriptionError
	case KindCancelled:
		return e.Cancelled
	default:
		return e.Internal
	}
}
