// Package transcriber provides speech-to-text transcription backends.
package transcriber

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/media"
)

// Instruction is sent to generative backends alongside the audio.
const Instruction = "Transcribe this audio to Urdu text. Return only the transcript."

// Segment represents a timestamped portion of transcript.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string

	// Confidence is the mean token probability, valid when HasConfidence is set.
	Confidence    float64
	HasConfidence bool
}

// Result contains the transcription output.
type Result struct {
	Segments []Segment
	Backend  string
	Language string
	Duration time.Duration

	// Confidence is the overall transcript confidence in [0, 1], valid when
	// HasConfidence is set. It is not a language-identification probability:
	// local models report the mean token probability over all segments and
	// the openai provider the mean of exp(avg_logprob) over its segments.
	Confidence    float64
	HasConfidence bool
}

// Text joins segment texts with single spaces.
func (r *Result) Text() string {
	return JoinSegments(r.Segments)
}

// FormattedText returns the transcript with timestamps in format [HH:MM:SS] Text
func (r *Result) FormattedText() string {
	if len(r.Segments) == 0 {
		return ""
	}

	var b strings.Builder
	for _, seg := range r.Segments {
		fmt.Fprintf(&b, "[%s] %s\n", formatTimestamp(seg.Start), seg.Text)
	}
	return b.String()
}

// JoinSegments joins trimmed, non-empty segment texts with a single space.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// formatTimestamp converts duration to HH:MM:SS format
func formatTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Request is one transcription job.
type Request struct {
	// Audio is the normalized waveform; always set.
	Audio *media.Audio

	// Raw is the original upload, for backends that accept containers directly.
	Raw      []byte
	Filename string

	// Language is the ISO hint, e.g. "ur".
	Language string
}

// Stream yields segments in production order.
// It is finite and cannot be restarted.
type Stream interface {
	// Next returns the next segment, or io.EOF once the sequence is exhausted.
	Next() (Segment, error)

	// Result returns the overall result. Only valid after Next returned io.EOF.
	Result() *Result

	// Close abandons any in-flight work and releases resources.
	Close() error
}

// Backend converts audio to text.
type Backend interface {
	// Name returns the provider name.
	Name() string

	// Streaming reports whether segments arrive incrementally.
	Streaming() bool

	// Transcribe starts a transcription and returns its segment stream.
	Transcribe(ctx context.Context, req Request) (Stream, error)
}

// New creates a Backend based on configuration.
// Construction is deferred to the first Transcribe call, so a missing model
// or credential surfaces as a transcription failure rather than at startup.
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal, "":
		localCfg := cfg.LocalASR
		return Lazy("whisper-local", true, func() (Backend, error) {
			return NewLocal(localCfg)
		}), nil
	case config.BackendRemote:
		remoteCfg := cfg.Remote
		return Lazy(remoteName(remoteCfg.Provider), false, func() (Backend, error) {
			return NewRemote(remoteCfg, cfg.APIKey())
		}), nil
	default:
		return nil, fmt.Errorf("unsupported transcription backend: %s", cfg.Backend)
	}
}
