package transcriber

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/media"
)

// Remote providers.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenAIChat = "openai-chat"
)

// MaxRemoteUpload is the largest payload the OpenAI audio endpoints accept.
const MaxRemoteUpload = 25 * 1024 * 1024

// provider sends one audio payload to a hosted model and returns its text.
type provider interface {
	name() string

	// accepts reports whether the container ext can be uploaded as-is.
	accepts(ext string) bool

	transcribe(ctx context.Context, audio []byte, filename, language string) (providerResult, error)
}

type providerResult struct {
	Text          string
	Language      string
	Confidence    float64
	HasConfidence bool
}

// Remote implements Backend with a hosted generative model.
// The whole transcript arrives at once as a single segment.
type Remote struct {
	provider provider
	timeout  time.Duration
}

// NewRemote creates a remote backend. A blank apiKey fails with
// ErrMissingCredential before any client is built.
func NewRemote(cfg config.RemoteConfig, apiKey string) (*Remote, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingCredential
	}

	var p provider
	switch cfg.Provider {
	case ProviderOpenAI, "":
		p = newOpenAI(cfg, apiKey)
	case ProviderOpenAIChat:
		p = newOpenAIChat(cfg, apiKey)
	default:
		return nil, fmt.Errorf("unsupported remote provider: %s", cfg.Provider)
	}

	return &Remote{provider: p, timeout: cfg.Timeout}, nil
}

func remoteName(providerName string) string {
	if providerName == "" {
		return ProviderOpenAI
	}
	return providerName
}

// Name returns the provider name.
func (r *Remote) Name() string {
	return r.provider.name()
}

// Streaming reports false: the result is delivered in one piece.
func (r *Remote) Streaming() bool {
	return false
}

// Transcribe sends the audio and returns a stream with exactly one segment
// spanning the whole recording.
func (r *Remote) Transcribe(ctx context.Context, req Request) (Stream, error) {
	if !req.Audio.Valid() {
		return nil, &TranscriptionError{Backend: r.Name(), Err: errors.New("audio is empty or released")}
	}

	payload, filename, err := r.payload(req)
	if err != nil {
		return nil, &TranscriptionError{Backend: r.Name(), Err: err}
	}
	if len(payload) > MaxRemoteUpload {
		return nil, &TranscriptionError{Backend: r.Name(), Err: fmt.Errorf("audio payload is %s, over the %s upload limit",
			FormatBytes(int64(len(payload))), FormatBytes(MaxRemoteUpload))}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.provider.transcribe(callCtx, payload, filename, req.Language)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &BackendUnavailableError{Backend: r.Name(), Err: err}
	}

	language := out.Language
	if language == "" {
		language = req.Language
	}

	seg := Segment{
		Start:         0,
		End:           req.Audio.Duration,
		Text:          strings.TrimSpace(out.Text),
		Confidence:    out.Confidence,
		HasConfidence: out.HasConfidence,
	}
	return newSliceStream(&Result{
		Segments:      []Segment{seg},
		Backend:       r.Name(),
		Language:      language,
		Duration:      req.Audio.Duration,
		Confidence:    out.Confidence,
		HasConfidence: out.HasConfidence,
	}), nil
}

// payload returns the original upload when the provider accepts its
// container, otherwise the normalized audio as WAV.
func (r *Remote) payload(req Request) ([]byte, string, error) {
	ext := media.NormalizeExt(filepath.Ext(req.Filename))
	if len(req.Raw) > 0 && r.provider.accepts(ext) {
		return req.Raw, filepath.Base(req.Filename), nil
	}

	data, err := media.EncodeWAV(req.Audio)
	if err != nil {
		return nil, "", err
	}
	return data, "audio.wav", nil
}
