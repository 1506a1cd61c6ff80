package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	// ErrNoDataAvailable is reported when the remote lookup failed and nothing is cached.
	ErrNoDataAvailable = errors.New("no network and no cached data available")

	// ErrEmptyLocation is returned for blank location keys.
	ErrEmptyLocation = errors.New("location is required")

	errNoSource = errors.New("no weather source configured")
)

// Service resolves a location to a Result: remote source first, local cache on failure.
// It is the error boundary of the package; every path ends in a published Result.
type Service struct {
	cache        Cache
	source       Source
	state        *State
	notifier     Notifier
	fetchTimeout time.Duration
}

// NewService creates a new Service. notifier may be nil.
func NewService(cache Cache, source Source, state *State, notifier Notifier, fetchTimeout time.Duration) *Service {
	if state == nil {
		state = NewState()
	}
	return &Service{
		cache:        cache,
		source:       source,
		state:        state,
		notifier:     notifier,
		fetchTimeout: fetchTimeout,
	}
}

// State returns the cell this Service publishes to.
func (s *Service) State() *State {
	return s.state
}

// Resolve counts as a new submission: it supersedes any resolution in flight
// and returns the terminal Result of its own run.
func (s *Service) Resolve(ctx context.Context, location string) Result {
	if NormalizeKey(location) == "" {
		return Failure{Message: ErrEmptyLocation.Error()}
	}
	return s.resolve(ctx, s.state.Advance(), location)
}

// Lookup reads the local cache without touching the remote source or the State.
func (s *Service) Lookup(location string) (Record, bool) {
	if s.cache == nil {
		return Record{}, false
	}
	return s.cache.Lookup(location)
}

func (s *Service) resolve(ctx context.Context, gen uint64, location string) Result {
	if !s.state.Publish(gen, location, Loading{}) {
		log.Printf("DEBUG: resolution of %q superseded before start", location)
		return s.state.Snapshot().Result
	}

	record, err := s.fetch(ctx, location)
	if err == nil {
		if s.cache != nil {
			s.cache.Upsert(location, record)
		}
		return s.finish(gen, location, Success{Record: record})
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Printf("DEBUG: resolution of %q cancelled, result not published", location)
		return Failure{Message: ctx.Err().Error()}
	}

	log.Printf("remote lookup failed for %q: %v", location, err)

	if cached, ok := s.Lookup(location); ok {
		log.Printf("INFO: serving cached weather for %q", location)
		return s.finish(gen, location, Success{Record: cached, Cached: true})
	}

	return s.finish(gen, location, Failure{Message: ErrNoDataAvailable.Error()})
}

func (s *Service) fetch(ctx context.Context, location string) (rec Record, err error) {
	if s.source == nil {
		return Record{}, errNoSource
	}

	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("source %s panicked: %v", s.source.Name(), p)
		}
	}()

	return s.source.Fetch(ctx, location)
}

func (s *Service) finish(gen uint64, location string, r Result) Result {
	var notify func()
	if s.notifier != nil {
		notify = func() { s.notifier.Notify(NormalizeKey(location), r) }
	}
	if !s.state.publish(gen, location, r, notify) {
		log.Printf("DEBUG: discarding stale %s result for %q", r.Status(), location)
	}
	return r
}
