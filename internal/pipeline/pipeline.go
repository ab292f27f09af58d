package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/collector-series/collectorhub/internal/source"
)

// ErrRunInProgress is returned when a run is triggered for an adapter that
// already has one in flight. The trigger is skipped, never queued.
var ErrRunInProgress = errors.New("run already in progress")

// ErrUnknownSource is returned for triggers naming an unregistered adapter.
var ErrUnknownSource = errors.New("unknown source")

// Store is the slice of the dedup store the pipeline writes through.
type Store interface {
	InsertManyIfAbsent(ctx context.Context, recs []source.Record) (inserted, duplicates int, err error)
}

// RunResult aggregates one ingest run for one adapter.
type RunResult struct {
	Adapter    string `json:"adapter"`
	Fetched    int    `json:"fetched"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Err        error  `json:"-"`
}

// Pipeline runs fetch -> normalize -> insert-if-absent for registered
// adapters. Runs of the same adapter are mutually exclusive; runs of
// different adapters proceed in parallel. It holds no cross-run state: the
// store is the single source of truth for what has been seen.
type Pipeline struct {
	store        Store
	fetchTimeout time.Duration

	mu      sync.Mutex
	sources map[string]source.Source
	running map[string]*sync.Mutex
}

func New(store Store, fetchTimeout time.Duration) *Pipeline {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Pipeline{
		store:        store,
		fetchTimeout: fetchTimeout,
		sources:      make(map[string]source.Source),
		running:      make(map[string]*sync.Mutex),
	}
}

// Register adds an adapter under its own name.
func (p *Pipeline) Register(src source.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := src.Name()
	if _, ok := p.sources[name]; ok {
		return fmt.Errorf("source %q already registered", name)
	}
	p.sources[name] = src
	p.running[name] = &sync.Mutex{}
	return nil
}

// Sources returns the registered adapter names.
func (p *Pipeline) Sources() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.sources))
	for name := range p.sources {
		names = append(names, name)
	}
	return names
}

// Run executes one ingest run for the named adapter. A failed fetch ends the
// run with zero store interaction; duplicates are counted, not errors. A
// second trigger while a run is in flight returns ErrRunInProgress.
func (p *Pipeline) Run(ctx context.Context, name string) RunResult {
	p.mu.Lock()
	src, ok := p.sources[name]
	lock := p.running[name]
	p.mu.Unlock()
	if !ok {
		return RunResult{Adapter: name, Err: fmt.Errorf("%w: %s", ErrUnknownSource, name)}
	}

	if !lock.TryLock() {
		log.Printf("%s: skip run, previous run still in progress", name)
		return RunResult{Adapter: name, Err: ErrRunInProgress}
	}
	defer lock.Unlock()

	return p.runLocked(ctx, src)
}

func (p *Pipeline) runLocked(ctx context.Context, src source.Source) RunResult {
	name := src.Name()
	res := RunResult{Adapter: name}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	raw, err := src.Fetch(fetchCtx)
	if err != nil {
		log.Printf("fetch %s error: %v", name, err)
		res.Err = fmt.Errorf("fetch %s: %w", name, err)
		return res
	}
	res.Fetched = len(raw)
	if len(raw) == 0 {
		log.Printf("fetch %s got 0 items", name)
		return res
	}

	// Normalization is total: every fetched item becomes a record, malformed
	// fields land as defaults rather than dropped items.
	recs := make([]source.Record, len(raw))
	for i, item := range raw {
		recs[i] = src.Normalize(item)
	}

	inserted, duplicates, err := p.store.InsertManyIfAbsent(ctx, recs)
	res.Inserted = inserted
	res.Duplicates = duplicates
	if err != nil {
		log.Printf("store %s error after %d/%d writes: %v", name, inserted+duplicates, len(recs), err)
		res.Err = fmt.Errorf("store %s: %w", name, err)
		return res
	}

	log.Printf("%s done, fetched=%d inserted=%d duplicates=%d", name, res.Fetched, inserted, duplicates)
	return res
}

// RunAll runs every registered adapter concurrently and waits for all of them.
func (p *Pipeline) RunAll(ctx context.Context) []RunResult {
	names := p.Sources()

	var wg sync.WaitGroup
	results := make([]RunResult, len(names))
	for i, name := range names {
		i, name := i, name
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.Run(ctx, name)
		}()
	}
	wg.Wait()
	return results
}
