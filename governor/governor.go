// Package governor implements an adaptive concurrency governor (ACG): it
// submits caller-supplied asynchronous operations through an adjustable
// semaphore, classifies each outcome as success, overload, or ordinary
// failure, and periodically recomputes the semaphore's capacity using an
// AIMD (additive-increase / multiplicative-decrease) rule borrowed from TCP
// congestion control.
//
// Overview
//
// Construct a Governor with New, then call Submit for every operation that
// should be admitted through the adaptive limit:
//
//	g, err := governor.New(
//	    governor.WithMaxConcurrency(64),
//	    governor.WithInitialConcurrency(4),
//	    governor.WithOverloadThreshold(0.1),
//	)
//	handle, err := governor.Submit(g, ctx, func(ctx context.Context) (*Response, error) {
//	    return backend.Call(ctx, req)
//	})
//	resp, err := handle.Wait(ctx)
//	...
//	g.Shutdown()
//
// A task is classified exactly once, when it completes: a nil error
// increments finished_count; an error matching the configured overload
// ErrorKind increments both overload_count and finished_count; any other
// error changes no counters at all, so it cannot perturb the limit. When
// finished_count exceeds the current capacity, the governor closes the
// window: it computes the overload rate over the window, cuts capacity
// multiplicatively if the rate exceeds the configured threshold, otherwise
// grows it additively by a step that doubles (capped at 16) after every
// calm window and resets to 1 after every cut.
//
// The governor never substitutes, wraps, or swallows a submitted
// operation's error: the Handle returned by Submit resolves with exactly
// what the operation returned.
package governor

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Andrej220/adaptivelimiter/overload"
	"github.com/Andrej220/adaptivelimiter/semaphore"
	"github.com/Andrej220/adaptivelimiter/snapshot"
	"github.com/Andrej220/adaptivelimiter/zlog"
	"go.uber.org/multierr"
)

var (
	// ErrShutDown is returned by Submit once the Governor has been shut
	// down.
	ErrShutDown = errors.New("governor: shut down")
	// ErrInvalidArgument is returned by New when construction options
	// violate the ordering or range constraints documented on each With*
	// option.
	ErrInvalidArgument = errors.New("governor: invalid argument")
)

const (
	defaultMaxConcurrency     = 256
	defaultMinConcurrency     = 1
	defaultInitialConcurrency = 1
	defaultOverloadThreshold  = 0.10
	defaultDecreaseFactor     = 0.75
	maxIncreaseStep           = 16
)

type config struct {
	maxConcurrency     int
	minConcurrency     int
	initialConcurrency int
	overloadThreshold  float64
	decreaseFactor     float64
	kind               overload.ErrorKind
	logger             zlog.ZLogger
	logPrefix          string
}

// Option configures a Governor at construction time. Options are applied in
// order, and New validates the resulting configuration before building
// anything.
type Option func(*config)

// WithMaxConcurrency sets the hard upper bound on capacity. Default 256.
func WithMaxConcurrency(n int) Option { return func(c *config) { c.maxConcurrency = n } }

// WithMinConcurrency sets the hard lower bound on capacity. Default 1.
func WithMinConcurrency(n int) Option { return func(c *config) { c.minConcurrency = n } }

// WithInitialConcurrency sets the starting capacity. Default 1. Must lie
// within [min, max].
func WithInitialConcurrency(n int) Option { return func(c *config) { c.initialConcurrency = n } }

// WithOverloadThreshold sets the overload fraction above which capacity
// contracts. Default 0.10. Must lie in (0, 1).
func WithOverloadThreshold(f float64) Option { return func(c *config) { c.overloadThreshold = f } }

// WithDecreaseFactor sets the multiplicative cut applied to capacity on
// overload. Default 0.75. Must lie in (0, 1).
func WithDecreaseFactor(f float64) Option { return func(c *config) { c.decreaseFactor = f } }

// WithOverloadErrorKind configures the discriminator used to classify a
// completed task's error as an overload signal. Defaults to
// overload.Default, matching ErrServiceOverload.
func WithOverloadErrorKind(kind overload.ErrorKind) Option {
	return func(c *config) { c.kind = kind }
}

// WithLogger configures the logger used for diagnostic adjustment and
// shutdown log lines. Defaults to a discard logger.
func WithLogger(l zlog.ZLogger) Option { return func(c *config) { c.logger = l } }

// WithLogPrefix tags every log line from this Governor with a "component"
// field set to prefix. Diagnostic only; has no effect on behavior.
func WithLogPrefix(prefix string) Option { return func(c *config) { c.logPrefix = prefix } }

func defaultConfig() config {
	return config{
		maxConcurrency:     defaultMaxConcurrency,
		minConcurrency:     defaultMinConcurrency,
		initialConcurrency: defaultInitialConcurrency,
		overloadThreshold:  defaultOverloadThreshold,
		decreaseFactor:     defaultDecreaseFactor,
		kind:               overload.Default,
	}
}

func (c config) validate() error {
	if c.minConcurrency < 1 {
		return fmt.Errorf("%w: min_concurrency must be >= 1, got %d", ErrInvalidArgument, c.minConcurrency)
	}
	if c.minConcurrency > c.maxConcurrency {
		return fmt.Errorf("%w: min_concurrency (%d) must be <= max_concurrency (%d)", ErrInvalidArgument, c.minConcurrency, c.maxConcurrency)
	}
	if c.initialConcurrency < c.minConcurrency || c.initialConcurrency > c.maxConcurrency {
		return fmt.Errorf("%w: initial_concurrency (%d) must be within [%d, %d]", ErrInvalidArgument, c.initialConcurrency, c.minConcurrency, c.maxConcurrency)
	}
	if c.overloadThreshold <= 0 || c.overloadThreshold >= 1 {
		return fmt.Errorf("%w: overload_threshold must be in (0, 1), got %v", ErrInvalidArgument, c.overloadThreshold)
	}
	if c.decreaseFactor <= 0 || c.decreaseFactor >= 1 {
		return fmt.Errorf("%w: decrease_factor must be in (0, 1), got %v", ErrInvalidArgument, c.decreaseFactor)
	}
	if c.kind == nil {
		return fmt.Errorf("%w: overload error kind must not be nil", ErrInvalidArgument)
	}
	return nil
}

// liveTask is the type-erased bookkeeping the Governor keeps per submitted
// task. errFunc is only safe to call after done has been closed.
type liveTask struct {
	done    <-chan struct{}
	errFunc func() error
}

// Governor accepts asynchronous operations via Submit, runs each through an
// adjustable semaphore, and recomputes the semaphore's capacity from the
// rolling outcome window using an AIMD rule. The zero value is not usable;
// construct one with New.
type Governor struct {
	cfg config
	sem *semaphore.Semaphore

	mu            sync.Mutex
	capacity      int
	increaseStep  int
	overloadCount int
	finishedCount int
	runningCount  int
	adjustments   int
	lastReason    string
	shut          bool
	nextTaskID    uint64
	liveTasks     map[uint64]liveTask
}

// New constructs a Governor. It fails with an error wrapping
// ErrInvalidArgument if the configured bounds are inconsistent.
func New(opts ...Option) (*Governor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.logger == nil {
		cfg.logger = zlog.Discard
	}
	if cfg.logPrefix != "" {
		cfg.logger = cfg.logger.With(zlog.String("component", cfg.logPrefix))
	}

	return &Governor{
		cfg:          cfg,
		sem:          semaphore.New(cfg.initialConcurrency),
		capacity:     cfg.initialConcurrency,
		increaseStep: 1,
		liveTasks:    make(map[uint64]liveTask),
	}, nil
}

// Snapshot is an immutable, point-in-time copy of a Governor's diagnostic
// counters. It is safe to log or render via snapshot.Render and must never
// be fed back into the AIMD decision.
type Snapshot struct {
	Capacity      int `log:"include"`
	Available     int `log:"include"`
	RunningCount  int `log:"include" name:"running"`
	OverloadCount int `log:"include" name:"overload"`
	FinishedCount int `log:"include" name:"finished"`
	LiveTasks     int `log:"include" name:"live"`
	IncreaseStep  int `log:"include" name:"step"`
	Adjustments   int `log:"include"`
}

// Snapshot returns the Governor's current diagnostic counters.
func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Capacity:      g.capacity,
		Available:     g.sem.Available(),
		RunningCount:  g.runningCount,
		OverloadCount: g.overloadCount,
		FinishedCount: g.finishedCount,
		LiveTasks:     len(g.liveTasks),
		IncreaseStep:  g.increaseStep,
		Adjustments:   g.adjustments,
	}
}

// classifyAndMaybeAdjust updates the outcome counters for a single
// completed task and, if the window has closed, recomputes capacity. It
// must be called with g.mu unlocked; it acquires the lock itself so that
// two tasks completing concurrently are fully serialized and never
// double-count against the same window.
func (g *Governor) classifyAndMaybeAdjust(opErr error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case opErr == nil:
		g.finishedCount++
	case g.cfg.kind.Is(opErr):
		g.overloadCount++
		g.finishedCount++
	default:
		return
	}

	if g.finishedCount > g.capacity {
		g.adjustLocked()
	}
}

// adjustLocked recomputes capacity using the AIMD rule. Callers must hold
// g.mu.
func (g *Governor) adjustLocked() {
	rate := 0.0
	if g.finishedCount > 0 {
		rate = float64(g.overloadCount) / float64(g.finishedCount)
	}

	newCapacity := g.capacity
	if rate > g.cfg.overloadThreshold {
		newCapacity = int(math.Floor(float64(g.capacity) * g.cfg.decreaseFactor))
		if newCapacity < g.cfg.minConcurrency {
			newCapacity = g.cfg.minConcurrency
		}
		g.increaseStep = 1
		g.lastReason = "decrease"
	} else {
		newCapacity = g.capacity + g.increaseStep
		if newCapacity > g.cfg.maxConcurrency {
			newCapacity = g.cfg.maxConcurrency
		}
		g.increaseStep *= 2
		if g.increaseStep > maxIncreaseStep {
			g.increaseStep = maxIncreaseStep
		}
		g.lastReason = "increase"
	}

	g.cfg.logger.Info("capacity adjustment",
		zlog.String("reason", g.lastReason),
		zlog.Float64("overload_rate", rate),
		zlog.Int("old_capacity", g.capacity),
		zlog.Int("new_capacity", newCapacity),
		zlog.Int("increase_step", g.increaseStep),
	)

	g.overloadCount = 0
	g.finishedCount = 0
	g.capacity = newCapacity
	g.adjustments++
	_ = g.sem.SetCapacity(newCapacity)
}

func (g *Governor) removeLiveTask(id uint64) {
	g.mu.Lock()
	delete(g.liveTasks, id)
	g.mu.Unlock()
}

// Shutdown closes the semaphore so no further permits are granted (a task
// still queued for a permit settles with semaphore.ErrClosed), then waits
// for every live task to settle. Individual task failures are collected for
// diagnostic logging only; Shutdown never fails and never re-raises them.
// Shutdown is idempotent; a second call returns immediately.
func (g *Governor) Shutdown() {
	g.mu.Lock()
	if g.shut {
		g.mu.Unlock()
		return
	}
	g.shut = true
	g.sem.Close()
	tasks := make([]liveTask, 0, len(g.liveTasks))
	for _, t := range g.liveTasks {
		tasks = append(tasks, t)
	}
	g.mu.Unlock()

	var drainErrs error
	for _, t := range tasks {
		<-t.done
		if err := t.errFunc(); err != nil {
			drainErrs = multierr.Append(drainErrs, err)
		}
	}

	g.mu.Lock()
	g.liveTasks = make(map[uint64]liveTask)
	g.mu.Unlock()

	if drainErrs != nil {
		g.cfg.logger.Warn("shutdown drained failing tasks",
			zlog.Int("count", len(multierr.Errors(drainErrs))),
			zlog.Error("errors", drainErrs),
		)
	} else {
		g.cfg.logger.Info("shutdown complete", zlog.Int("drained", len(tasks)))
	}
}

// String renders the snapshot as a single log-friendly line.
func (s Snapshot) String() string {
	return snapshot.Render(s)
}
