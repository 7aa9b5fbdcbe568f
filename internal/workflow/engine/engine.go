package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/kingrea/modgraph/internal/logbook"
	"github.com/kingrea/modgraph/internal/logging"
	"github.com/kingrea/modgraph/internal/module"
	"github.com/kingrea/modgraph/internal/workflow"
	"github.com/kingrea/modgraph/internal/workflow/changes"
	"github.com/kingrea/modgraph/internal/workflow/resolver"
	"github.com/kingrea/modgraph/internal/workflow/scheduler"
	"github.com/kingrea/modgraph/internal/workflow/view"
)

// Recorder receives the outcome of every pass.
type Recorder interface {
	PassSucceeded(snap *view.Snapshot, elapsed time.Duration)
	PassFailed(err error, elapsed time.Duration)
}

// Listener is called after a new snapshot becomes current. Listeners run on
// the goroutine that called Load, after the pass lock is released.
type Listener func(*view.Snapshot)

type nopRecorder struct{}

func (nopRecorder) PassSucceeded(*view.Snapshot, time.Duration) {}
func (nopRecorder) PassFailed(error, time.Duration)             {}

// Engine coordinates the resolver, scheduler, change tracker and exporter
// while persisting the last good configuration.
type Engine struct {
	catalog  *module.Catalog
	resolver *resolver.Resolver
	sorter   *scheduler.Scheduler
	repo     StateStore
	log      logr.Logger
	book     *logbook.Logbook
	recorder Recorder
	clock    func() time.Time
	newID    func() string
	resOpts  []resolver.Option

	// mu serialises passes and guards the fields below it.
	mu          sync.Mutex
	previous    workflow.Configuration
	hasPrevious bool
	generation  uint64
	lastErr     error
	lastErrAt   time.Time
	current     atomic.Pointer[view.Snapshot]
	listenersMu sync.RWMutex
	listeners   []Listener
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDGenerator replaces the random resolution IDs.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log logr.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithLogbook records pass outcomes in the operator logbook.
func WithLogbook(book *logbook.Logbook) Option {
	return func(e *Engine) {
		e.book = book
	}
}

// WithRecorder reports pass outcomes to a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(e *Engine) {
		if rec != nil {
			e.recorder = rec
		}
	}
}

// WithStateStore persists the last good configuration. On construction the
// stored configuration becomes the baseline for the first reset list.
func WithStateStore(repo StateStore) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithAliasRule replaces the thread-prefix alias convention.
func WithAliasRule(rule workflow.AliasRule) Option {
	return func(e *Engine) {
		e.resOpts = append(e.resOpts, resolver.WithAliasRule(rule))
	}
}

// New wires an engine to the module catalog.
func New(catalog *module.Catalog, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("workflow engine: module catalog is required")
	}
	e := &Engine{
		catalog:  catalog,
		log:      logr.Discard(),
		recorder: nopRecorder{},
		clock:    time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.log = e.log.WithName("engine")
	res, err := resolver.New(catalog, e.resOpts...)
	if err != nil {
		return nil, err
	}
	sorter, err := scheduler.New(catalog)
	if err != nil {
		return nil, err
	}
	e.resolver = res
	e.sorter = sorter
	if err := e.restore(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) restore() error {
	if e.repo == nil {
		return nil
	}
	state, err := e.repo.Load()
	if errors.Is(err, ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("workflow engine: restore state: %w", err)
	}
	e.previous = state.Configuration.Clone()
	e.hasPrevious = true
	e.generation = state.Generation
	e.log.V(logging.VERBOSE).Info("restored previous configuration",
		"generation", state.Generation, "threads", state.Configuration.ThreadNames())
	return nil
}

// Catalog returns the catalog the engine resolves against.
func (e *Engine) Catalog() *module.Catalog {
	return e.catalog
}

// Current returns the published snapshot, or nil before the first successful
// pass. It never blocks.
func (e *Engine) Current() *view.Snapshot {
	return e.current.Load()
}

// Generation returns the generation of the current snapshot.
func (e *Engine) Generation() uint64 {
	if snap := e.current.Load(); snap != nil {
		return snap.Generation
	}
	return 0
}

// Status reports readiness and the most recent failure.
func (e *Engine) Status() Status {
	e.mu.Lock()
	lastErr, lastErrAt := e.lastErr, e.lastErrAt
	e.mu.Unlock()
	st := Status{}
	if snap := e.current.Load(); snap != nil {
		st.Ready = true
		st.Generation = snap.Generation
		st.ResolutionID = snap.ResolutionID
		st.ResolvedAt = snap.ResolvedAt
		st.Threads = snap.ThreadNames()
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
		st.LastErrorAt = lastErrAt
	}
	return st
}

// Subscribe registers a listener for future snapshots.
func (e *Engine) Subscribe(listener Listener) {
	if listener == nil {
		return
	}
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// LoadFile parses a configuration file and runs a pass over it. Parse failures
// count as failed passes.
func (e *Engine) LoadFile(ctx context.Context, path string) (*view.Snapshot, error) {
	cfg, err := workflow.LoadConfigurationFile(path)
	if err != nil {
		e.mu.Lock()
		e.fail(e.newID(), err, 0)
		e.mu.Unlock()
		return nil, err
	}
	return e.Load(ctx, cfg)
}

// Load resolves cfg, orders every thread, computes the reset list against the
// last good configuration and publishes the result. Any error leaves the
// current snapshot untouched.
func (e *Engine) Load(ctx context.Context, cfg workflow.Configuration) (*view.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	snap, err := e.pass(cfg)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.notify(snap)
	return snap, nil
}

func (e *Engine) pass(cfg workflow.Configuration) (*view.Snapshot, error) {
	start := e.clock()
	id := e.newID()
	log := e.log.WithValues("resolution", id)
	log.V(logging.DEBUG).Info("resolving configuration", "threads", cfg.ThreadNames(), "defaults", cfg.Defaults)

	snap, err := e.build(cfg)
	elapsed := e.clock().Sub(start)
	if err != nil {
		e.fail(id, err, elapsed)
		return nil, err
	}
	e.generation++
	snap.Generation = e.generation
	snap.ResolutionID = id
	snap.ResolvedAt = start

	if e.hasPrevious && !sameThreads(e.previous, cfg) {
		log.Info("thread set changed; resets are matched by thread name",
			"previous", e.previous.ThreadNames(), "next", cfg.ThreadNames())
		e.book.Warn("thread set changed from [%s] to [%s]",
			strings.Join(e.previous.ThreadNames(), ", "), strings.Join(cfg.ThreadNames(), ", "))
	}
	if e.repo != nil {
		state := State{
			Generation:    snap.Generation,
			ResolutionID:  id,
			Configuration: cfg.Clone(),
			Reset:         append([]string(nil), snap.Reset...),
			UpdatedAt:     start,
		}
		if err := e.repo.Save(state); err != nil {
			log.Error(err, "failed to persist engine state")
		}
	}
	e.previous = cfg.Clone()
	e.hasPrevious = true
	e.lastErr = nil
	e.current.Store(snap)
	e.recorder.PassSucceeded(snap, elapsed)

	log.V(logging.DEFAULT).Info("published snapshot",
		"generation", snap.Generation, "threads", len(snap.Threads), "reset", snap.Reset, "elapsed", elapsed)
	e.book.Info("generation=%d resolution=%s threads=%d reset=[%s]",
		snap.Generation, id, len(snap.Threads), strings.Join(snap.Reset, ", "))
	return snap, nil
}

func (e *Engine) build(cfg workflow.Configuration) (*view.Snapshot, error) {
	shared, err := e.resolver.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	orders, err := e.sorter.Plan(cfg, shared)
	if err != nil {
		return nil, err
	}
	return view.Build(view.Input{
		Configuration: cfg,
		Catalog:       e.catalog,
		Shared:        shared,
		Orders:        orders,
		Reset:         changes.Diff(e.previous, cfg),
	})
}

// fail records a rejected pass. The caller holds mu.
func (e *Engine) fail(id string, err error, elapsed time.Duration) {
	e.lastErr = err
	e.lastErrAt = e.clock()
	e.recorder.PassFailed(err, elapsed)
	log := e.log.WithValues("resolution", id)
	var resErr *workflow.Error
	if errors.As(err, &resErr) && resErr.Internal() {
		log.Error(err, "resolution failed", "kind", resErr.Kind, "internal", true)
	} else {
		log.Info("configuration rejected", "error", err.Error())
	}
	e.book.Error("resolution %s failed: %v", id, err)
}

func (e *Engine) notify(snap *view.Snapshot) {
	e.listenersMu.RLock()
	listeners := append([]Listener(nil), e.listeners...)
	e.listenersMu.RUnlock()
	for _, listener := range listeners {
		listener(snap)
	}
}

func sameThreads(a, b workflow.Configuration) bool {
	left, right := a.ThreadNames(), b.ThreadNames()
	if len(left) != len(right) {
		return false
	}
	sort.Strings(left)
	sort.Strings(right)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}
