package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guiyumin/urduscribe/internal/core/ai/session"
)

var (
	errSessionNotFound = errors.New("session not found")
	errSessionBusy     = errors.New("session is already transcribing")
)

// relay forwards session events to whichever client is listening.
type relay struct {
	mu   sync.Mutex
	sink func(session.Event)
}

func (r *relay) publish(e session.Event) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink(e)
	}
}

func (r *relay) attach(sink func(session.Event)) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// entry is one session held by the server
type entry struct {
	session   *session.Session
	relay     *relay
	cancel    context.CancelFunc // set while transcribing
	updatedAt time.Time
}

// Store keeps sessions in memory until they expire.
// Finished sessions live for ttl so the transcript can be downloaded.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*entry
	ttl         time.Duration
	now         func() time.Time
	startOnce   sync.Once
	stopOnce    sync.Once
	stopCleanup chan struct{}
}

// NewStore creates a session store.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		entries:     make(map[string]*entry),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
}

// Start begins the cleanup routine. Calls after the first are no-ops.
func (st *Store) Start() {
	st.startOnce.Do(func() {
		interval := st.ttl / 2
		if interval < time.Second {
			interval = time.Second
		}
		go st.cleanupLoop(time.NewTicker(interval))
	})
}

// Stop cancels running transcriptions and stops the cleanup routine.
// It is safe to call more than once.
func (st *Store) Stop() {
	st.stopOnce.Do(func() { close(st.stopCleanup) })

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, e := range st.entries {
		if e.cancel != nil {
			e.cancel()
		}
	}
}

func (st *Store) cleanupLoop(ticker *time.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			st.cleanupExpired()
		case <-st.stopCleanup:
			return
		}
	}
}

// cleanupExpired drops sessions idle for longer than ttl and returns how
// many were removed. Running transcriptions are left alone.
func (st *Store) cleanupExpired() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-st.ttl)
	count := 0
	for id, e := range st.entries {
		if e.cancel == nil && e.updatedAt.Before(cutoff) {
			delete(st.entries, id)
			count++
		}
	}
	return count
}

// Add registers a session
func (st *Store) Add(s *session.Session, r *relay) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.entries[s.ID()] = &entry{session: s, relay: r, updatedAt: st.now()}
}

// Get returns a session by ID
func (st *Store) Get(id string) *session.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok := st.entries[id]; ok {
		return e.session
	}
	return nil
}

// Len returns the number of held sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

// begin claims a session for transcription and routes its events to sink.
func (st *Store) begin(id string, cancel context.CancelFunc, sink func(session.Event)) (*session.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.entries[id]
	if !ok {
		return nil, errSessionNotFound
	}
	if e.cancel != nil {
		return nil, errSessionBusy
	}
	e.cancel = cancel
	e.relay.attach(sink)
	e.updatedAt = st.now()
	return e.session, nil
}

// finish releases the claim taken by begin.
func (st *Store) finish(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if e, ok := st.entries[id]; ok {
		e.cancel = nil
		e.relay.attach(nil)
		e.updatedAt = st.now()
	}
}

// Remove abandons a session, cancelling in-flight work.
func (st *Store) Remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.entries[id]
	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(st.entries, id)
	return true
}
