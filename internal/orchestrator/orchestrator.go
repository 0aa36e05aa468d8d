// Package orchestrator routes debounced change batches to the build engine
// and the test impact resolver, and tracks the watch session's state.
//
// Every public method is synchronous and serialized by one mutex, so the
// dependency graph, the debounce table and the dirty set are only ever
// mutated by one goroutine at a time. Run adds a deadline-driven scheduler on
// top of the same serialized methods.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wilbur182/forgewatch/internal/build"
	"github.com/wilbur182/forgewatch/internal/testimpact"
	"github.com/wilbur182/forgewatch/internal/watch"
)

// flushTick is how far past the caller's time HandleEvent flushes.
const flushTick = time.Millisecond

// Options configures an Orchestrator.
type Options struct {
	Logger *slog.Logger
	Clock  func() time.Time

	Build       build.Options
	TestMarkers []string

	// SimulatedErrors picks, for a batch of changed paths, the files the
	// compile step should report as failed. Nil means every compile succeeds.
	SimulatedErrors func(paths []string) []string

	// OnBuild and OnTestImpact are called after each result, outside the lock.
	OnBuild      func(build.Result)
	OnTestImpact func(testimpact.Result)
}

// Orchestrator owns one Watch Manager, Build Engine and Test Impact Resolver
// for the lifetime of a watch session.
type Orchestrator struct {
	mu sync.Mutex

	watcher *watch.Manager
	engine  *build.Engine
	tests   *testimpact.Resolver

	status         Status
	lastBuild      *build.Result
	lastTestImpact *testimpact.Result
	scheduler      *watch.Scheduler

	logger          *slog.Logger
	clock           func() time.Time
	simulatedErrors func([]string) []string
	onBuild         func(build.Result)
	onTestImpact    func(testimpact.Result)
}

// New creates an idle Orchestrator for cfg.
func New(cfg watch.Config, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	buildOpts := opts.Build
	if buildOpts.Logger == nil {
		buildOpts.Logger = logger
	}
	if buildOpts.Clock == nil {
		buildOpts.Clock = clock
	}

	return &Orchestrator{
		watcher:         watch.NewManager(cfg, watch.WithClock(clock)),
		engine:          build.NewEngine(buildOpts),
		tests:           testimpact.New(opts.TestMarkers...),
		status:          StatusIdle,
		logger:          logger,
		clock:           clock,
		simulatedErrors: opts.SimulatedErrors,
		onBuild:         opts.OnBuild,
		onTestImpact:    opts.OnTestImpact,
	}
}

// Start moves the orchestrator to watching.
// Entries that fell due while stopped flush once the scheduler re-arms.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	o.status = StatusWatching
	sched := o.scheduler
	o.logger.Info("orchestrator: watching", "root", o.watcher.RootDir(), "files", o.engine.FileCount())
	o.mu.Unlock()

	if sched != nil {
		sched.Poke()
	}
}

// Stop moves the orchestrator to idle. Work is synchronous, so nothing is
// in flight when Stop acquires the lock. Pending entries are kept, and a
// running scheduler waits until Start.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = StatusIdle
	o.logger.Info("orchestrator: stopped")
}

// RegisterFile registers file and its imports with the build engine.
func (o *Orchestrator) RegisterFile(file string, imports []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.engine.Register(file, imports)
}

// RegisterTestFiles adds known test files.
func (o *Orchestrator) RegisterTestFiles(paths []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tests.AddTestFiles(paths)
}

// MapTests maps source to the tests covering it.
func (o *Orchestrator) MapTests(source string, tests []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tests.MapSourceToTests(source, tests)
}

// HandleEvent receives ev at now and immediately flushes every entry due one
// tick later, routing each to the build and/or test reaction of its rule.
// It does nothing unless the orchestrator is watching (or in error).
func (o *Orchestrator) HandleEvent(ev watch.Event, now time.Time) {
	o.mu.Lock()
	if !o.acceptingLocked() {
		o.mu.Unlock()
		return
	}
	if matched := o.watcher.ReceiveAt(ev, now); len(matched) == 0 {
		o.mu.Unlock()
		o.logger.Debug("orchestrator: no rule matched", "path", ev.Path)
		return
	}
	notes := o.routeLocked(o.watcher.Flush(now.Add(flushTick)))
	o.mu.Unlock()

	o.notify(notes)
}

// Ingest records ev without flushing; the scheduler started by Run flushes
// entries once their debounce deadline passes.
func (o *Orchestrator) Ingest(ev watch.Event) bool {
	o.mu.Lock()
	if !o.acceptingLocked() {
		o.mu.Unlock()
		return false
	}
	matched := o.watcher.Receive(ev)
	sched := o.scheduler
	o.mu.Unlock()

	if len(matched) == 0 {
		return false
	}
	if sched != nil {
		sched.Poke()
	}
	return true
}

// FlushDue flushes and routes every entry due at or before now.
func (o *Orchestrator) FlushDue(now time.Time) {
	o.mu.Lock()
	if !o.acceptingLocked() {
		o.mu.Unlock()
		return
	}
	notes := o.routeLocked(o.watcher.Flush(now))
	o.mu.Unlock()

	o.notify(notes)
}

// RecompileAll invalidates every artifact and rebuilds all registered files,
// whatever the current status.
func (o *Orchestrator) RecompileAll() build.Result {
	o.mu.Lock()
	prev := o.status
	o.engine.InvalidateAll()
	res := o.compileLocked(nil)
	if prev == StatusIdle {
		o.status = StatusIdle
	}
	o.mu.Unlock()

	o.notify([]notice{{build: &res}})
	return res
}

// State returns a snapshot of the session.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := State{
		Status:           o.status,
		WatchedFileCount: o.engine.FileCount(),
		PendingCount:     o.watcher.PendingCount(),
	}
	if o.lastBuild != nil {
		b := o.lastBuild.Clone()
		st.LastBuild = &b
	}
	if o.lastTestImpact != nil {
		ti := o.lastTestImpact.Clone()
		st.LastTestImpact = &ti
	}
	return st
}

// Run starts watching and processes events until ctx is done or events is
// closed. Entries are flushed when their debounce deadline passes; on close,
// everything still pending is flushed before Run returns.
func (o *Orchestrator) Run(ctx context.Context, events <-chan watch.Event) error {
	sched := watch.NewScheduler(o.nextDeadline, o.FlushDue, o.clock)

	o.mu.Lock()
	o.scheduler = sched
	o.mu.Unlock()
	o.Start()

	defer func() {
		o.mu.Lock()
		o.scheduler = nil
		o.mu.Unlock()
		o.Stop()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					o.drain()
					return nil
				}
				o.Ingest(ev)
			}
		}
	})
	return g.Wait()
}

// nextDeadline reports nothing pending unless events are being accepted.
func (o *Orchestrator) nextDeadline() (time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.acceptingLocked() {
		return time.Time{}, false
	}
	return o.watcher.NextDeadline()
}

func (o *Orchestrator) drain() {
	o.mu.Lock()
	if !o.acceptingLocked() {
		o.mu.Unlock()
		return
	}
	notes := o.routeLocked(o.watcher.FlushAll())
	o.mu.Unlock()

	o.notify(notes)
}

func (o *Orchestrator) acceptingLocked() bool {
	return o.status == StatusWatching || o.status == StatusError
}

type notice struct {
	build *build.Result
	tests *testimpact.Result
}

// routeLocked runs the reactions for each flushed entry. Must be called with o.mu held.
func (o *Orchestrator) routeLocked(entries []*watch.Entry) []notice {
	var notes []notice
	for _, e := range entries {
		paths := e.Paths()
		o.logger.Debug("orchestrator: flush", "rule", e.Rule.Glob, "mode", e.Rule.Mode, "paths", paths, "events", len(e.Events))

		if e.Rule.Mode.Builds() {
			for _, p := range paths {
				o.engine.MarkDirty(p)
			}
			res := o.compileLocked(paths)
			notes = append(notes, notice{build: &res})
		}
		if e.Rule.Mode.Tests() {
			settled := o.status
			o.status = StatusTesting
			res := o.tests.Refresh(paths)
			kept := res.Clone()
			o.lastTestImpact = &kept
			o.status = settled
			o.logger.Debug("orchestrator: test impact", "selected", res.TotalTests, "skipped", len(res.SkippedFiles))
			notes = append(notes, notice{tests: &res})
		}
	}
	return notes
}

// compileLocked runs one build cycle and settles the status on its outcome.
// Must be called with o.mu held.
func (o *Orchestrator) compileLocked(paths []string) build.Result {
	o.status = StatusBuilding

	var failing []string
	if o.simulatedErrors != nil {
		failing = o.simulatedErrors(paths)
	}
	res := o.engine.Compile(failing...)
	kept := res.Clone()
	o.lastBuild = &kept

	if res.Success {
		o.status = StatusWatching
	} else {
		o.status = StatusError
		o.logger.Warn("orchestrator: build failed", "errors", res.Errors)
	}
	return res
}

func (o *Orchestrator) notify(notes []notice) {
	for _, n := range notes {
		if n.build != nil && o.onBuild != nil {
			o.onBuild(*n.build)
		}
		if n.tests != nil && o.onTestImpact != nil {
			o.onTestImpact(*n.tests)
		}
	}
}
