package transcriber

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// engineResult is what a local engine reports once it has finished.
type engineResult struct {
	Language   string
	TokenProbs []float64
}

// runFunc produces segments by calling emit in order.
// emit blocks until the consumer takes the segment or ctx is done.
type runFunc func(ctx context.Context, emit func(Segment) error) (engineResult, error)

// chanStream hands segments from a producer goroutine to the caller one at
// a time over an unbuffered channel.
type chanStream struct {
	backend  string
	duration time.Duration

	segs   chan Segment
	done   chan struct{}
	cancel context.CancelFunc

	// written by the producer before done is closed
	engine engineResult
	err    error

	collected []Segment
	finished  bool
	closeOnce sync.Once
}

func startStream(ctx context.Context, backend string, duration time.Duration, run runFunc) *chanStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &chanStream{
		backend:  backend,
		duration: duration,
		segs:     make(chan Segment),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer close(s.done)
		s.engine, s.err = run(ctx, func(seg Segment) error {
			select {
			case s.segs <- seg:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if s.err == nil && ctx.Err() != nil {
			s.err = ctx.Err()
		}
	}()

	return s
}

func (s *chanStream) Next() (Segment, error) {
	if s.finished {
		return Segment{}, s.terminalErr()
	}

	select {
	case seg := <-s.segs:
		s.collected = append(s.collected, seg)
		return seg, nil
	case <-s.done:
		s.finished = true
		return Segment{}, s.terminalErr()
	}
}

func (s *chanStream) terminalErr() error {
	if s.err == nil {
		return io.EOF
	}
	if errors.Is(s.err, context.Canceled) || errors.Is(s.err, context.DeadlineExceeded) {
		return s.err
	}
	var te *TranscriptionError
	if errors.As(s.err, &te) {
		return s.err
	}
	return &TranscriptionError{Backend: s.backend, Err: s.err}
}

func (s *chanStream) Result() *Result {
	if !s.finished || s.err != nil {
		return nil
	}

	res := &Result{
		Segments: s.collected,
		Backend:  s.backend,
		Language: s.engine.Language,
		Duration: s.duration,
	}
	res.Confidence, res.HasConfidence = meanProb(s.engine.TokenProbs)
	return res
}

// Close cancels the producer and waits for it to release its resources.
func (s *chanStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

// sliceStream replays a fully computed result.
type sliceStream struct {
	result *Result
	pos    int
}

func newSliceStream(res *Result) *sliceStream {
	return &sliceStream{result: res}
}

func (s *sliceStream) Next() (Segment, error) {
	if s.pos >= len(s.result.Segments) {
		return Segment{}, io.EOF
	}
	seg := s.result.Segments[s.pos]
	s.pos++
	return seg, nil
}

func (s *sliceStream) Result() *Result {
	if s.pos < len(s.result.Segments) {
		return nil
	}
	return s.result
}

func (s *sliceStream) Close() error { return nil }

// meanProb averages token probabilities; ok is false when there are none.
func meanProb(probs []float64) (float64, bool) {
	if len(probs) == 0 {
		return 0, false
	}
	return clamp01(stat.Mean(probs, nil)), true
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
