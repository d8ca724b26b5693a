// Package semaphore implements a counting semaphore whose capacity can be
// changed while acquirers are waiting or holding permits.
//
// Unlike a fixed-size semaphore, shrinking the capacity never revokes a
// permit that is already held: the deficit is absorbed by Available, which
// is allowed to go negative until enough Release calls bring it back above
// zero. Growing the capacity wakes waiters immediately, up to the size of
// the increase.
//
// The implementation is adapted from the list-of-waiters pattern used by
// golang.org/x/sync/semaphore: each blocked Acquire parks on its own
// channel, and a single mutex protects capacity, held, and the waiter
// queue.
package semaphore

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Acquire and ScopedAcquire once the owning
	// Semaphore has been closed.
	ErrClosed = errors.New("semaphore: closed")
	// ErrInvalidArgument is returned by SetCapacity for a negative capacity.
	ErrInvalidArgument = errors.New("semaphore: capacity must be >= 0")
	// ErrRelease is returned when Release is called more times than Acquire
	// has succeeded.
	ErrRelease = errors.New("semaphore: released more permits than were acquired")
)

type waiter struct {
	ready chan struct{}
}

// Semaphore is a counting semaphore with a runtime-adjustable capacity.
// The zero value is not usable; construct one with New.
type Semaphore struct {
	mu       sync.Mutex
	capacity int
	held     int
	waiters  list.List
	closed   bool
	closedCh chan struct{}
}

// New creates a Semaphore with the given capacity. It panics if capacity is
// negative, since that is a construction-time misconfiguration rather than
// a runtime condition.
func New(capacity int) *Semaphore {
	if capacity < 0 {
		panic("semaphore: initial capacity must be >= 0")
	}
	return &Semaphore{
		capacity: capacity,
		closedCh: make(chan struct{}),
	}
}

// Acquire blocks until a permit is available, ctx is done, or the semaphore
// is closed. A cancelled or closed Acquire never consumes a permit, even if
// it was momentarily granted one while racing a wakeup.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.held < s.capacity && s.waiters.Len() == 0 {
		s.held++
		s.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	elem := s.waiters.PushBack(w)
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return s.abandon(w, elem, ctx.Err())
	case <-s.closedCh:
		return s.abandon(w, elem, ErrClosed)
	case <-w.ready:
		return nil
	}
}

// abandon handles a waiter giving up (context cancelled or semaphore
// closed) that may have raced a concurrent wakeup. If the wakeup already
// granted the permit, it is released immediately rather than kept, so that
// a cancelled acquirer never ends up holding a permit.
func (s *Semaphore) abandon(w *waiter, elem *list.Element, err error) error {
	s.mu.Lock()
	select {
	case <-w.ready:
		s.mu.Unlock()
		_ = s.Release()
		return err
	default:
		s.waiters.Remove(elem)
		s.mu.Unlock()
		return err
	}
}

// TryAcquire acquires a permit without blocking. It reports whether a
// permit was granted.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.held < s.capacity && s.waiters.Len() == 0 {
		s.held++
		return true
	}
	return false
}

// Release returns a permit, waking one queued waiter if capacity allows.
// It returns ErrRelease if called more times than Acquire succeeded.
func (s *Semaphore) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held <= 0 {
		return ErrRelease
	}
	s.held--
	s.wakeLocked()
	return nil
}

// SetCapacity changes the capacity to new. If the capacity grows, up to
// the size of the increase of queued waiters are woken. If it shrinks
// below the number of currently held permits, Available goes negative and
// no new acquirer succeeds until enough Release calls absorb the deficit.
func (s *Semaphore) SetCapacity(new int) error {
	if new < 0 {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = new
	s.wakeLocked()
	return nil
}

// wakeLocked grants permits to queued waiters while held < capacity. Callers
// must hold mu.
func (s *Semaphore) wakeLocked() {
	for s.held < s.capacity {
		e := s.waiters.Front()
		if e == nil {
			return
		}
		w := e.Value.(*waiter)
		s.waiters.Remove(e)
		s.held++
		close(w.ready)
	}
}

// Available returns the instantaneous number of permits grantable without
// waiting. It may be negative after a capacity reduction.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity - s.held
}

// Capacity returns the current capacity.
func (s *Semaphore) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// ScopedAcquire acquires a permit, runs fn, and releases the permit on every
// exit path including a panic inside fn. All user-facing acquisition should
// go through this rather than bare Acquire/Release.
func (s *Semaphore) ScopedAcquire(ctx context.Context, fn func() error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = s.Release() }()
	return fn()
}

// Close tears down the semaphore. Every blocked Acquire returns ErrClosed,
// every subsequent Acquire/ScopedAcquire fails the same way, and every
// subsequent TryAcquire returns false.
// Close is idempotent.
func (s *Semaphore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.closedCh)
}
