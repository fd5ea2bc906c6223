// Package session drives one upload through normalization and transcription.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/i18n"
	"github.com/guiyumin/urduscribe/internal/core/media"
)

// Artifact file properties.
const (
	ArtifactFilename    = "urdu_transcript.txt"
	ArtifactContentType = "text/plain; charset=utf-8"
)

// Upload is the media a session receives.
type Upload struct {
	Data     []byte
	Filename string
	MIMEType string
}

// Artifact is the downloadable transcript.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EventType identifies what an Event carries.
type EventType string

const (
	EventStatus  EventType = "status"
	EventPartial EventType = "partial"
	EventFinal   EventType = "final"
	EventError   EventType = "error"
)

// Event reports session progress to the presentation layer.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state"`
	Message string    `json:"message,omitempty"`

	// Text is the cumulative transcript for partial and final events.
	Text string `json:"text,omitempty"`

	// Confidence is set on final events when the backend reports one.
	Confidence *float64 `json:"confidence,omitempty"`

	Kind Kind  `json:"kind,omitempty"`
	Err  error `json:"-"`
}

// Observer receives events synchronously, in production order.
type Observer func(Event)

// Normalizer converts upload bytes into mono 16 kHz audio.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte, ext string) (*media.Audio, error)
}

// Deps are the collaborators of a session.
type Deps struct {
	Normalizer Normalizer
	Backend    transcriber.Backend

	// Language is the transcript language hint passed to the backend.
	Language string

	// UILanguage selects the locale of status and error messages.
	UILanguage string

	// TempDir is the parent of the per-session scratch directory.
	TempDir string

	// LiveDelay paces partial events.
	LiveDelay time.Duration

	Observer Observer
}

// Session is the lifecycle of one uploaded file.
type Session struct {
	id   string
	deps Deps
	tr   *i18n.Translations

	mu     sync.Mutex
	state  State
	upload Upload
	result *transcriber.Result
	err    error
}

// New creates a session in the Idle state.
func New(deps Deps) *Session {
	if deps.Language == "" {
		deps.Language = "ur"
	}
	return &Session{
		id:    uuid.NewString(),
		deps:  deps,
		tr:    i18n.T(deps.UILanguage),
		state: Idle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Filename returns the declared name of the upload.
func (s *Session) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload.Filename
}

// Result returns the transcription result once Completed.
func (s *Session) Result() *transcriber.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the failure cause once Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Upload accepts the media for this session.
// An empty file or an extension outside media.SupportedExtensions fails
// the session with ErrInvalidInput.
func (s *Session) Upload(u Upload) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return fmt.Errorf("%w: upload in state %s", ErrInvalidState, s.state)
	}
	s.mu.Unlock()

	ext := filepath.Ext(u.Filename)
	switch {
	case len(u.Data) == 0:
		return s.fail(fmt.Errorf("%w: empty file", ErrInvalidInput))
	case !media.IsSupported(ext):
		return s.fail(fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, ext))
	}

	s.mu.Lock()
	s.upload = u
	s.state = Uploaded
	s.mu.Unlock()

	s.emit(Event{Type: EventStatus, State: Uploaded, Message: s.tr.Status.Uploaded})
	return nil
}

// Transcribe runs normalization and transcription to completion.
// Partial events are emitted after every segment. The session ends
// Completed or Failed, and its temporary files are gone before the
// final or error event is emitted.
func (s *Session) Transcribe(ctx context.Context) (*transcriber.Result, error) {
	s.mu.Lock()
	if s.state != Uploaded {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: transcribe in state %s", ErrInvalidState, s.state)
	}
	s.state = Converting
	upload := s.upload
	s.mu.Unlock()

	result, err := s.run(ctx, upload)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.state = Completed
	s.result = result
	s.upload.Data = nil
	s.mu.Unlock()

	final := Event{
		Type:    EventFinal,
		State:   Completed,
		Message: s.tr.Finished(result.Confidence, result.HasConfidence),
		Text:    result.Text(),
	}
	if result.HasConfidence {
		conf := result.Confidence
		final.Confidence = &conf
	}
	s.emit(final)

	log.Printf("session %s: completed with %s, %d segments", s.id, result.Backend, len(result.Segments))
	return result, nil
}

// run owns every temporary resource of the pipeline and releases them
// before returning.
func (s *Session) run(ctx context.Context, upload Upload) (*transcriber.Result, error) {
	tempDir, err := os.MkdirTemp(s.deps.TempDir, "urduscribe-session-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	s.emit(Event{Type: EventStatus, State: Converting, Message: s.tr.Status.Processing})
	s.emit(Event{Type: EventStatus, State: Converting, Message: s.tr.Status.Converting})

	normalizer := s.deps.Normalizer
	if n, ok := normalizer.(*media.Normalizer); ok {
		normalizer = n.WithTempDir(tempDir)
	}

	audio, err := normalizer.Normalize(ctx, upload.Data, filepath.Ext(upload.Filename))
	if err != nil {
		return nil, err
	}
	defer audio.Release()

	s.setState(Transcribing)
	backend := s.deps.Backend
	if backend.Streaming() {
		s.emit(Event{Type: EventStatus, State: Transcribing, Message: s.tr.Status.LoadingModel})
	}

	stream, err := backend.Transcribe(ctx, transcriber.Request{
		Audio:    audio,
		Raw:      upload.Data,
		Filename: upload.Filename,
		Language: s.deps.Language,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	s.emit(Event{Type: EventStatus, State: Transcribing, Message: s.tr.Status.Transcribing})

	var segments []transcriber.Segment
	for {
		seg, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		segments = append(segments, seg)
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		s.emit(Event{Type: EventPartial, State: Transcribing, Text: transcriber.JoinSegments(segments)})

		if err := s.pace(ctx); err != nil {
			return nil, err
		}
	}

	result := stream.Result()
	if result == nil {
		return nil, &transcriber.TranscriptionError{Backend: backend.Name(), Err: errors.New("stream ended without a result")}
	}
	return result, nil
}

// Artifact returns the transcript as a plain-text file.
func (s *Session) Artifact() (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Completed || s.result == nil {
		return nil, fmt.Errorf("%w: no transcript in state %s", ErrInvalidState, s.state)
	}
	return &Artifact{
		Filename:    ArtifactFilename,
		ContentType: ArtifactContentType,
		Data:        []byte(s.result.Text()),
	}, nil
}

// pace waits LiveDelay between partial events.
func (s *Session) pace(ctx context.Context) error {
	if s.deps.LiveDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.deps.LiveDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// fail moves the session to Failed, reports err and returns it.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = Failed
	s.err = err
	s.upload.Data = nil
	s.mu.Unlock()

	kind := Classify(err)
	log.Printf("session %s: failed (%s): %v", s.id, kind, err)
	s.emit(Event{
		Type:    EventError,
		State:   Failed,
		Message: UserMessage(err, s.deps.UILanguage),
		Kind:    kind,
		Err:     err,
	})
	return err
}

func (s *Session) emit(e Event) {
	if s.deps.Observer != nil {
		s.deps.Observer(e)
	}
}
