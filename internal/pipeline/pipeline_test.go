package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/collector-series/collectorhub/internal/source"
)

// memStore mimics the dedup store's identity-key contract in memory.
type memStore struct {
	mu      sync.Mutex
	seen    map[string]source.Record
	calls   int32 // InsertManyIfAbsent invocations
	writers int32 // currently active writers
	maxW    int32 // high-water mark of concurrent writers
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{seen: make(map[string]source.Record)}
}

func (m *memStore) InsertManyIfAbsent(ctx context.Context, recs []source.Record) (int, int, error) {
	atomic.AddInt32(&m.calls, 1)
	w := atomic.AddInt32(&m.writers, 1)
	defer atomic.AddInt32(&m.writers, -1)
	for {
		old := atomic.LoadInt32(&m.maxW)
		if w <= old || atomic.CompareAndSwapInt32(&m.maxW, old, w) {
			break
		}
	}

	if m.failAll {
		return 0, 0, errors.New("connection lost")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	inserted, duplicates := 0, 0
	for _, r := range recs {
		key := r.Collection + "/" + r.IdentityKey
		if _, ok := m.seen[key]; ok {
			duplicates++
			continue
		}
		m.seen[key] = r
		inserted++
	}
	return inserted, duplicates, nil
}

// stubSource returns canned raw items, optionally failing or stalling.
type stubSource struct {
	name    string
	items   []source.RawItem
	err     error
	stall   chan struct{} // when set, Fetch blocks until closed
	fetches int32
}

func (s *stubSource) Name() string       { return s.name }
func (s *stubSource) Collection() string { return "headlines" }

func (s *stubSource) Fetch(ctx context.Context) ([]source.RawItem, error) {
	atomic.AddInt32(&s.fetches, 1)
	if s.stall != nil {
		select {
		case <-s.stall:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func (s *stubSource) Normalize(item source.RawItem) source.Record {
	now := time.Now()
	headline := source.StringOr(item, "headline", source.NotAvailable)
	return source.Record{
		Collection:  s.Collection(),
		SourceTag:   s.name,
		IdentityKey: source.IdentityKey(s.name, headline),
		Headline:    headline,
		Author:      source.StringOr(item, "author", source.NotAvailable),
		CollectedAt: now,
		PublishedAt: now,
	}
}

func threeItems() []source.RawItem {
	return []source.RawItem{
		{"headline": "item1", "author": "Ann"},
		{"headline": "item2"}, // missing author
		{"headline": "item3", "author": "Cid"},
	}
}

func TestRunInsertsAllThenDeduplicatesAll(t *testing.T) {
	store := newMemStore()
	p := New(store, time.Second)
	if err := p.Register(&stubSource{name: "stub", items: threeItems()}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	first := p.Run(context.Background(), "stub")
	if first.Err != nil {
		t.Fatalf("first run error: %v", first.Err)
	}
	if first.Fetched != 3 || first.Inserted != 3 || first.Duplicates != 0 {
		t.Fatalf("first run counts: %+v", first)
	}

	// The item missing its author must be stored with the default, not dropped.
	stored, ok := store.seen["headlines/"+source.IdentityKey("stub", "item2")]
	if !ok {
		t.Fatalf("item2 missing from store")
	}
	if stored.Author != source.NotAvailable {
		t.Fatalf("item2 author = %q, want %q", stored.Author, source.NotAvailable)
	}

	// Identical fetch again: idempotent, nothing new stored.
	second := p.Run(context.Background(), "stub")
	if second.Err != nil {
		t.Fatalf("second run error: %v", second.Err)
	}
	if second.Fetched != 3 || second.Inserted != 0 || second.Duplicates != 3 {
		t.Fatalf("second run counts: %+v", second)
	}
}

func TestRunFailedFetchTouchesStoreZeroTimes(t *testing.T) {
	store := newMemStore()
	p := New(store, time.Second)
	if err := p.Register(&stubSource{name: "broken", err: errors.New("network down")}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := p.Run(context.Background(), "broken")
	if res.Err == nil {
		t.Fatalf("expected run error")
	}
	if res.Fetched != 0 || res.Inserted != 0 {
		t.Fatalf("failed fetch must report zero counts: %+v", res)
	}
	if atomic.LoadInt32(&store.calls) != 0 {
		t.Fatalf("store must not be touched after a failed fetch, got %d calls", store.calls)
	}
}

func TestRunEmptyFetchIsNotAnError(t *testing.T) {
	store := newMemStore()
	p := New(store, time.Second)
	if err := p.Register(&stubSource{name: "empty"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := p.Run(context.Background(), "empty")
	if res.Err != nil {
		t.Fatalf("empty fetch should not error: %v", res.Err)
	}
	if res.Fetched != 0 || res.Inserted != 0 || res.Duplicates != 0 {
		t.Fatalf("empty fetch counts: %+v", res)
	}
}

func TestRunStoreFailureFailsWholeRun(t *testing.T) {
	store := newMemStore()
	store.failAll = true
	p := New(store, time.Second)
	if err := p.Register(&stubSource{name: "stub", items: threeItems()}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := p.Run(context.Background(), "stub")
	if res.Err == nil {
		t.Fatalf("expected store failure to fail the run")
	}
	if res.Fetched != 3 {
		t.Fatalf("fetched count should still reflect the fetch: %+v", res)
	}
}

func TestRunUnknownSource(t *testing.T) {
	p := New(newMemStore(), time.Second)
	res := p.Run(context.Background(), "nope")
	if !errors.Is(res.Err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", res.Err)
	}
}

func TestOverlappingRunsOfSameAdapterAreSkipped(t *testing.T) {
	store := newMemStore()
	p := New(store, 5*time.Second)

	stall := make(chan struct{})
	slow := &stubSource{name: "slow", items: threeItems(), stall: stall}
	if err := p.Register(slow); err != nil {
		t.Fatalf("Register: %v", err)
	}

	firstDone := make(chan RunResult, 1)
	go func() { firstDone <- p.Run(context.Background(), "slow") }()

	// Wait until the first run is mid-fetch, then fire the "next tick".
	for atomic.LoadInt32(&slow.fetches) == 0 {
		time.Sleep(time.Millisecond)
	}
	second := p.Run(context.Background(), "slow")
	if !errors.Is(second.Err, ErrRunInProgress) {
		t.Fatalf("overlapping trigger should be skipped, got %+v", second)
	}

	close(stall)
	first := <-firstDone
	if first.Err != nil {
		t.Fatalf("first run error: %v", first.Err)
	}
	if got := atomic.LoadInt32(&store.maxW); got > 1 {
		t.Fatalf("more than one concurrent writer for one adapter: %d", got)
	}
	if got := atomic.LoadInt32(&slow.fetches); got != 1 {
		t.Fatalf("skipped trigger must not fetch, fetches=%d", got)
	}
}

func TestRunAllRunsDistinctAdaptersInParallel(t *testing.T) {
	store := newMemStore()
	p := New(store, 5*time.Second)

	stallA := make(chan struct{})
	stallB := make(chan struct{})
	a := &stubSource{name: "a", items: threeItems(), stall: stallA}
	b := &stubSource{name: "b", items: threeItems(), stall: stallB}
	if err := p.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(b); err != nil {
		t.Fatalf("Register: %v", err)
	}

	done := make(chan []RunResult, 1)
	go func() { done <- p.RunAll(context.Background()) }()

	// Both adapters must be in flight at once; if runs were serialized the
	// second fetch would never start while the first is stalled.
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&a.fetches) == 0 || atomic.LoadInt32(&b.fetches) == 0 {
		select {
		case <-deadline:
			t.Fatalf("adapters did not run in parallel: a=%d b=%d", a.fetches, b.fetches)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(stallA)
	close(stallB)

	results := <-done
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Adapter, res.Err)
		}
		if res.Inserted != 3 {
			t.Fatalf("%s: inserted=%d, want 3", res.Adapter, res.Inserted)
		}
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	p := New(newMemStore(), time.Second)
	if err := p.Register(&stubSource{name: "dup"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(&stubSource{name: "dup"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
