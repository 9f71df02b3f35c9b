// Package loop runs a function on a fixed interval in the background.
package loop

import (
	"context"
	"sync"
	"time"
)

// Looper calls fn every interval until stopped. The first call happens
// one interval after Start. A Looper can be restarted after Stop.
type Looper struct {
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(interval time.Duration, fn func(ctx context.Context)) *Looper {
	return &Looper{interval: interval, fn: fn}
}

// Start launches the loop. Calling Start on a running Looper does nothing.
func (l *Looper) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop cancels the loop and waits for the goroutine to exit, so the
// caller may release whatever fn uses as soon as Stop returns.
// Stopping a Looper that is not running does nothing.
func (l *Looper) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.wg.Wait()
}

func (l *Looper) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Looper) run(ctx context.Context) {
	defer l.wg.Done()
	t := time.NewTicker(l.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.fn(ctx)
		}
	}
}
