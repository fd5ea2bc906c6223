//go:build cgo

package transcriber

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperEngine runs whisper.cpp in-process through its Go bindings.
// A model holds one set of weights, so inference on it is serialized.
type whisperEngine struct {
	model whisper.Model
	opts  LocalOptions
	mu    sync.Mutex
}

func newLocalEngine(opts LocalOptions) (localEngine, error) {
	model, err := whisper.New(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}
	return &whisperEngine{model: model, opts: opts}, nil
}

func (e *whisperEngine) run(ctx context.Context, samples []float32, language string, emit func(Segment) error) (engineResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return engineResult{}, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return engineResult{}, fmt.Errorf("failed to create whisper context: %w", err)
	}

	if language != "auto" {
		if err := wctx.SetLanguage(language); err != nil {
			return engineResult{}, fmt.Errorf("failed to set language: %w", err)
		}
	}
	wctx.SetThreads(uint(e.opts.Threads))
	wctx.SetBeamSize(e.opts.BeamSize)

	var (
		probs   []float64
		emitErr error
	)

	encoderBegin := func() bool {
		return ctx.Err() == nil
	}

	onSegment := func(s whisper.Segment) {
		if emitErr != nil {
			return
		}
		seg := Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		}
		var sum float64
		var n int
		for _, tok := range s.Tokens {
			// special tokens such as [_BEG_] carry no text
			if strings.HasPrefix(tok.Text, "[_") {
				continue
			}
			sum += float64(tok.P)
			n++
			probs = append(probs, float64(tok.P))
		}
		if n > 0 {
			seg.Confidence = clamp01(sum / float64(n))
			seg.HasConfidence = true
		}
		emitErr = emit(seg)
	}

	if err := wctx.Process(samples, encoderBegin, onSegment, nil); err != nil {
		if ctx.Err() != nil {
			return engineResult{}, ctx.Err()
		}
		return engineResult{}, fmt.Errorf("failed to process audio: %w", err)
	}
	if emitErr != nil {
		return engineResult{}, emitErr
	}

	return engineResult{Language: resultLanguage(wctx.DetectedLanguage(), language), TokenProbs: probs}, nil
}
