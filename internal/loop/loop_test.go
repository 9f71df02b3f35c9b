package loop_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kushgupta-hiver/lanconnect4/internal/loop"
)

func TestLooper_RunsUntilStopped(t *testing.T) {
	var calls atomic.Int64
	l := loop.New(5*time.Millisecond, func(context.Context) { calls.Add(1) })

	l.Start()
	deadline := time.After(time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 calls, got %d", calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
	l.Stop()

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Fatalf("fn ran after Stop returned")
	}
	if l.Running() {
		t.Fatalf("expected Running false after Stop")
	}
}

func TestLooper_StartStopIdempotent(t *testing.T) {
	var calls atomic.Int64
	l := loop.New(time.Millisecond, func(context.Context) { calls.Add(1) })

	l.Stop() // not started
	l.Start()
	l.Start()
	if !l.Running() {
		t.Fatalf("expected Running")
	}
	l.Stop()
	l.Stop()

	// restart works
	l.Start()
	l.Stop()
}

func TestLooper_StopWaitsForInFlightCall(t *testing.T) {
	entered := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool
	l := loop.New(time.Millisecond, func(ctx context.Context) {
		once.Do(func() { close(entered) })
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})

	l.Start()
	<-entered
	l.Stop()
	if !finished.Load() {
		t.Fatalf("Stop returned before the running call finished")
	}
}

func TestLooper_StopFromOtherGoroutine(t *testing.T) {
	l := loop.New(time.Millisecond, func(context.Context) {})
	l.Start()

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stop from another goroutine did not return")
	}
}
