package weather

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is what readers of a State observe.
type Snapshot struct {
	Result     Result
	Location   string
	Generation uint64
	Version    uint64 // counts accepted writes
	UpdatedAt  time.Time
}

// State is the shared tri-state cell written by resolutions and read by presentation.
//
// Every submission advances the generation. A write carries the generation it
// was started under and is dropped when a newer submission has happened since,
// so a slow earlier resolution can never overwrite a later one.
type State struct {
	mu         sync.Mutex // serializes Advance and Publish
	generation atomic.Uint64
	version    uint64 // guarded by mu
	current    atomic.Pointer[Snapshot]

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

// NewState returns a State holding Loading at generation zero.
func NewState() *State {
	s := &State{subs: make(map[chan struct{}]struct{})}
	s.current.Store(&Snapshot{Result: Loading{}, UpdatedAt: time.Now().UTC()})
	return s
}

// Advance starts a new generation and returns it. Writes tagged with any
// earlier generation are discarded from now on.
func (s *State) Advance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation.Add(1)
}

// Generation returns the latest submitted generation.
func (s *State) Generation() uint64 {
	return s.generation.Load()
}

// Publish stores r if gen is still the latest generation and reports whether it did.
func (s *State) Publish(gen uint64, location string, r Result) bool {
	return s.publish(gen, location, r, nil)
}

// publish is Publish with a hook run before the lock is released, so
// accepted writes reach onAccept in generation order.
func (s *State) publish(gen uint64, location string, r Result, onAccept func()) bool {
	s.mu.Lock()
	if gen != s.generation.Load() {
		s.mu.Unlock()
		return false
	}
	s.version++
	s.current.Store(&Snapshot{
		Result:     r,
		Location:   location,
		Generation: gen,
		Version:    s.version,
		UpdatedAt:  time.Now().UTC(),
	})
	if onAccept != nil {
		onAccept()
	}
	s.mu.Unlock()

	s.broadcast()
	return true
}

// Snapshot returns the latest accepted value.
func (s *State) Snapshot() Snapshot {
	return *s.current.Load()
}

// Subscribe returns a channel that receives a signal after accepted writes.
// Signals coalesce: a slow reader sees at least one signal per burst and
// should call Snapshot to read the value. The returned func unsubscribes.
func (s *State) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, ch)
			s.subsMu.Unlock()
		})
	}
}

func (s *State) broadcast() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
