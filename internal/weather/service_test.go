package weather

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// mapCache is a minimal Cache used by the package tests.
type mapCache struct {
	mu   sync.Mutex
	data map[string]Record
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]Record)}
}

func (c *mapCache) Upsert(key string, r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[NormalizeKey(key)] = r
}

func (c *mapCache) Lookup(key string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[NormalizeKey(key)]
	return r, ok
}

// fakeSource returns canned records, fails for unknown keys and can block per key.
type fakeSource struct {
	mu      sync.Mutex
	records map[string]Record
	gates   map[string]chan struct{}
	calls   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		records: make(map[string]Record),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, location string) (Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, location)
	gate := f.gates[location]
	rec, ok := f.records[location]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
	if !ok {
		return Record{}, errors.New("connection refused")
	}
	return rec, nil
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recordingNotifier struct {
	mu      sync.Mutex
	keys    []string
	results []Result
}

func (n *recordingNotifier) Notify(key string, r Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.keys = append(n.keys, key)
	n.results = append(n.results, r)
}

func sampleRecord(id int, name string) Record {
	return Record{
		ID:   id,
		Name: name,
		Main: Main{Temp: 12.5, Pressure: 1012, Humidity: 70},
		Conditions: []Descriptor{{
			Code: 800, Label: "Clear", Description: "clear sky", Icon: "01d", Kind: ConditionClear,
		}},
		Wind: Wind{Speed: 3.1, Direction: 240},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestResolveSuccessWritesCache(t *testing.T) {
	src := newFakeSource()
	rec := sampleRecord(3143244, "Oslo")
	src.records["oslo"] = rec
	cache := newMapCache()
	svc := NewService(cache, src, NewState(), nil, time.Second)

	got := svc.Resolve(context.Background(), "oslo")

	success, ok := got.(Success)
	if !ok {
		t.Fatalf("expected Success, got %#v", got)
	}
	if success.Cached {
		t.Error("fresh result must not be marked cached")
	}
	if success.Record.ID != rec.ID {
		t.Errorf("record id = %d, want %d", success.Record.ID, rec.ID)
	}

	cached, ok := cache.Lookup("oslo")
	if !ok || cached.ID != rec.ID {
		t.Fatalf("expected cache to hold oslo record, got %#v (found=%v)", cached, ok)
	}

	snap := svc.State().Snapshot()
	if _, ok := snap.Result.(Success); !ok {
		t.Errorf("state should hold Success, got %#v", snap.Result)
	}
}

func TestResolveFallsBackToCache(t *testing.T) {
	src := newFakeSource()
	cache := newMapCache()
	cachedRec := sampleRecord(1850147, "Tokyo")
	cache.Upsert("tokyo", cachedRec)
	svc := NewService(cache, src, NewState(), nil, time.Second)

	got := svc.Resolve(context.Background(), "tokyo")

	success, ok := got.(Success)
	if !ok {
		t.Fatalf("expected Success from cache, got %#v", got)
	}
	if !success.Cached {
		t.Error("fallback result should be marked cached")
	}
	if success.Record.Name != "Tokyo" {
		t.Errorf("record name = %q, want Tokyo", success.Record.Name)
	}
}

func TestResolveWithoutCacheFails(t *testing.T) {
	svc := NewService(newMapCache(), newFakeSource(), NewState(), nil, time.Second)

	got := svc.Resolve(context.Background(), "atlantis")

	failure, ok := got.(Failure)
	if !ok {
		t.Fatalf("expected Failure, got %#v", got)
	}
	if failure.Message != "no network and no cached data available" {
		t.Errorf("unexpected message %q", failure.Message)
	}
	if _, ok := svc.State().Snapshot().Result.(Failure); !ok {
		t.Error("state should hold the failure")
	}
}

func TestResolveNilSourceFallsBack(t *testing.T) {
	cache := newMapCache()
	cache.Upsert("Paris", sampleRecord(2988507, "Paris"))
	svc := NewService(cache, nil, NewState(), nil, 0)

	if _, ok := svc.Resolve(context.Background(), "PARIS").(Success); !ok {
		t.Fatal("expected cached Success when no source is configured")
	}
}

type panicSource struct{}

func (panicSource) Name() string { return "panic" }
func (panicSource) Fetch(context.Context, string) (Record, error) {
	panic("boom")
}

func TestResolveRecoversFromSourcePanic(t *testing.T) {
	svc := NewService(newMapCache(), panicSource{}, NewState(), nil, 0)

	if _, ok := svc.Resolve(context.Background(), "kyiv").(Failure); !ok {
		t.Fatal("a panicking source should end in Failure")
	}
}

func TestResolveEmptyLocation(t *testing.T) {
	state := NewState()
	svc := NewService(newMapCache(), newFakeSource(), state, nil, 0)

	got := svc.Resolve(context.Background(), "   ")

	failure, ok := got.(Failure)
	if !ok || !strings.Contains(failure.Message, "required") {
		t.Fatalf("expected empty-location failure, got %#v", got)
	}
	if state.Generation() != 0 {
		t.Errorf("empty location must not advance the state, generation = %d", state.Generation())
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	src := newFakeSource()
	src.records["a"] = sampleRecord(1, "A")
	src.records["b"] = sampleRecord(2, "B")
	gateA := make(chan struct{})
	src.gates["a"] = gateA

	notifier := &recordingNotifier{}
	cache := newMapCache()
	svc := NewService(cache, src, NewState(), notifier, 5*time.Second)

	done := make(chan Result, 1)
	go func() { done <- svc.Resolve(context.Background(), "a") }()

	waitFor(t, time.Second, func() bool { return len(src.Calls()) == 1 })

	if _, ok := svc.Resolve(context.Background(), "b").(Success); !ok {
		t.Fatal("expected b to resolve")
	}

	close(gateA)
	<-done

	snap := svc.State().Snapshot()
	success, ok := snap.Result.(Success)
	if !ok || success.Record.Name != "B" {
		t.Fatalf("state should still reflect b, got %#v", snap.Result)
	}
	if snap.Location != "b" {
		t.Errorf("snapshot location = %q, want b", snap.Location)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.keys) != 1 || notifier.keys[0] != "b" {
		t.Errorf("only b should be notified, got %v", notifier.keys)
	}

	// The stale run's data is still valid for its own key.
	if _, ok := cache.Lookup("a"); !ok {
		t.Error("stale run should still cache its record")
	}
}

func TestNotifierReceivesNormalizedKey(t *testing.T) {
	src := newFakeSource()
	src.records[" Oslo "] = sampleRecord(3143244, "Oslo")
	notifier := &recordingNotifier{}
	svc := NewService(newMapCache(), src, NewState(), notifier, 0)

	svc.Resolve(context.Background(), " Oslo ")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.keys) != 1 || notifier.keys[0] != "oslo" {
		t.Fatalf("notifier keys = %v, want [oslo]", notifier.keys)
	}
}

func TestResolveCancelledIsNotPublished(t *testing.T) {
	src := newFakeSource()
	src.gates["lisbon"] = make(chan struct{})
	notifier := &recordingNotifier{}
	svc := NewService(newMapCache(), src, NewState(), notifier, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- svc.Resolve(ctx, "lisbon") }()

	waitFor(t, time.Second, func() bool { return len(src.Calls()) == 1 })
	cancel()

	if _, ok := (<-done).(Failure); !ok {
		t.Fatal("cancelled resolution should report a failure to its caller")
	}
	if _, ok := svc.State().Snapshot().Result.(Loading); !ok {
		t.Errorf("state = %#v, want Loading", svc.State().Snapshot().Result)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.keys) != 0 {
		t.Errorf("cancelled resolution must not notify, got %v", notifier.keys)
	}
}

// lockCheckNotifier records whether the State lock was held during Notify.
type lockCheckNotifier struct {
	state  *State
	locked []bool
}

func (n *lockCheckNotifier) Notify(string, Result) {
	acquired := n.state.mu.TryLock()
	if acquired {
		n.state.mu.Unlock()
	}
	n.locked = append(n.locked, !acquired)
}

func TestNotifyRunsInsidePublish(t *testing.T) {
	src := newFakeSource()
	src.records["oslo"] = sampleRecord(3143244, "Oslo")
	state := NewState()
	notifier := &lockCheckNotifier{state: state}
	svc := NewService(newMapCache(), src, state, notifier, 0)

	svc.Resolve(context.Background(), "oslo")
	svc.Resolve(context.Background(), "atlantis")

	if len(notifier.locked) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifier.locked))
	}
	for i, held := range notifier.locked {
		if !held {
			t.Errorf("notification %d ran outside the publish critical section", i)
		}
	}
}
