package transcriber

import (
	"context"
	"sync"
)

// lazyBackend builds its backend on first use and keeps it once built.
// Failed builds are not cached, so a model downloaded later is picked up.
type lazyBackend struct {
	name      string
	streaming bool
	build     func() (Backend, error)

	mu      sync.Mutex
	backend Backend
}

// Lazy wraps a backend constructor so that construction happens on the
// first Transcribe call.
func Lazy(name string, streaming bool, build func() (Backend, error)) Backend {
	return &lazyBackend{name: name, streaming: streaming, build: build}
}

func (l *lazyBackend) Name() string    { return l.name }
func (l *lazyBackend) Streaming() bool { return l.streaming }

func (l *lazyBackend) get() (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend != nil {
		return l.backend, nil
	}
	b, err := l.build()
	if err != nil {
		return nil, err
	}
	l.backend = b
	return b, nil
}

func (l *lazyBackend) Transcribe(ctx context.Context, req Request) (Stream, error) {
	b, err := l.get()
	if err != nil {
		return nil, err
	}
	return b.Transcribe(ctx, req)
}
