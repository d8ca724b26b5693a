package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Andrej220/adaptivelimiter/backoff"
	"github.com/Andrej220/adaptivelimiter/overload"
)

func TestOnOverloadRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, overload.ErrServiceOverload
		}
		return 42, nil
	}

	b := backoff.New(time.Millisecond, 5*time.Millisecond, 1)
	wrapped := OnOverload(overload.Default, b, time.Second, op)

	result, err := wrapped(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("got %d, want 42", result)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestOnOverloadPassesThroughNonMatchingError(t *testing.T) {
	wantErr := errors.New("not overload")
	attempts := 0
	op := func(ctx context.Context) (int, error) {
		attempts++
		return 0, wantErr
	}

	b := backoff.New(time.Millisecond, 5*time.Millisecond, 1)
	wrapped := OnOverload(overload.Default, b, time.Second, op)

	_, err := wrapped(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (should not retry non-matching error)", attempts)
	}
}

func TestOnOverloadRespectsContextCancellation(t *testing.T) {
	op := func(ctx context.Context) (int, error) {
		return 0, overload.ErrServiceOverload
	}

	b := backoff.New(10*time.Millisecond, 50*time.Millisecond, 1)
	wrapped := OnOverload(overload.Default, b, time.Minute, op)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := wrapped(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestOnOverloadStopsAfterMaxElapsed(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) (int, error) {
		attempts++
		return 0, overload.ErrServiceOverload
	}

	b := backoff.New(5*time.Millisecond, 5*time.Millisecond, 1)
	wrapped := OnOverload(overload.Default, b, 12*time.Millisecond, op)

	_, err := wrapped(context.Background())
	if !errors.Is(err, overload.ErrServiceOverload) {
		t.Fatalf("got %v, want overload sentinel", err)
	}
	if attempts < 2 {
		t.Fatalf("attempts = %d, want at least 2", attempts)
	}
}
