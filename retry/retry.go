// Package retry provides a retry-on-overload combinator that is layered
// outside a governor.Submit call, never inside it. The governor's AIMD
// feedback loop is only supposed to see the final outcome of an operation;
// a retry that happens inside the loop (rather than around it) would let a
// single logical call count as several overload events, skewing the
// overload rate the governor computes.
//
// OnOverload wraps an operation so that it retries while the error matches
// a configured overload.ErrorKind, sleeping between attempts per a
// backoff.Backoff. Only the last attempt's outcome is returned, which is
// what a caller should then pass to governor.Submit.
package retry

import (
	"context"
	"time"

	"github.com/Andrej220/adaptivelimiter/backoff"
	"github.com/Andrej220/adaptivelimiter/overload"
)

// Op is an operation suitable for wrapping by OnOverload and, afterward,
// submission to a governor.
type Op[T any] func(ctx context.Context) (T, error)

// OnOverload returns an operation that retries op while its error matches
// kind, sleeping b.Next() between attempts, until op succeeds, returns a
// non-matching error, ctx is done, or the cumulative sleep time reaches
// maxElapsed. The returned operation's outcome is always the most recent
// attempt's outcome.
func OnOverload[T any](kind overload.ErrorKind, b *backoff.Backoff, maxElapsed time.Duration, op Op[T]) Op[T] {
	return func(ctx context.Context) (T, error) {
		var elapsed time.Duration
		for {
			result, err := op(ctx)
			if err == nil || !kind.Is(err) {
				return result, err
			}
			if elapsed >= maxElapsed {
				return result, err
			}
			sleep := b.Next()
			elapsed += sleep
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				var zero T
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
