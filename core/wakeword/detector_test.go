package wakeword

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualWakesPendingWait(t *testing.T) {
	manual := NewManual()
	manual.Trigger()
	manual.Trigger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := manual.AwaitWake(ctx); err != nil {
		t.Fatalf("expected wake, got %v", err)
	}

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer shortCancel()
	if err := manual.AwaitWake(shortCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected duplicate trigger to be dropped, got %v", err)
	}
}

type failingDetector struct{ err error }

func (f failingDetector) AwaitWake(context.Context) error { return f.err }

type blockingDetector struct{ cancelled chan struct{} }

func (b blockingDetector) AwaitWake(ctx context.Context) error {
	<-ctx.Done()
	close(b.cancelled)
	return ctx.Err()
}

func TestFirstOfReturnsFirstWake(t *testing.T) {
	manual := NewManual()
	blocking := blockingDetector{cancelled: make(chan struct{})}
	detector := FirstOf(blocking, manual)

	manual.Trigger()
	if err := detector.AwaitWake(context.Background()); err != nil {
		t.Fatalf("expected wake, got %v", err)
	}

	select {
	case <-blocking.cancelled:
	default:
		t.Fatalf("expected other detectors to have returned")
	}
}

// flakyDetector fails its first call and wakes on every later one.
type flakyDetector struct{ calls atomic.Int32 }

func (f *flakyDetector) AwaitWake(context.Context) error {
	if f.calls.Add(1) == 1 {
		return errors.New("socket closed")
	}
	return nil
}

func TestFirstOfReturnsFailureAndRearms(t *testing.T) {
	flaky := &flakyDetector{}
	detector := FirstOf(flaky, NewManual())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := detector.AwaitWake(ctx); err == nil || err.Error() != "socket closed" {
		t.Fatalf("expected detector failure, got %v", err)
	}
	if err := detector.AwaitWake(ctx); err != nil {
		t.Fatalf("expected failed detector to wake when re-armed, got %v", err)
	}
	if calls := flaky.calls.Load(); calls != 2 {
		t.Fatalf("expected failed detector to be called again, got %d calls", calls)
	}
}

func TestFirstOfReturnsContextErrorWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := FirstOf(NewManual(), NewManual()).AwaitWake(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
