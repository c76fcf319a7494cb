// Package limiter provides a counting semaphore that bounds how many units of
// work run concurrently. Waiters are admitted in FIFO order as slots free up,
// so a burst of cheap work cannot starve an earlier expensive request.
package limiter

import (
	"context"
	"sync"
)

// Limiter is a FIFO-fair counting semaphore. The zero value is not usable;
// create one with New.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	held    int
	waiters []chan struct{}
}

// New creates a limiter admitting at most limit concurrent holders.
// A limit below 1 is treated as 1.
func New(limit int) *Limiter {
	if limit < 1 {
		limit = 1
	}
	return &Limiter{limit: limit}
}

// Acquire blocks until a slot is free or ctx is cancelled. On success the
// caller owns one slot and must pair it with exactly one Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.held < l.limit {
		l.held++
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-ready:
			// Release signalled us before we observed cancellation; the slot
			// was transferred here, so pass it on to the next waiter.
			l.mu.Unlock()
			l.Release()
		default:
			for i, w := range l.waiters {
				if w == ready {
					l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
					break
				}
			}
			l.mu.Unlock()
		}
		return ctx.Err()
	}
}

// Release returns a slot. If waiters are queued, ownership transfers directly
// to the oldest one. Calling Release without a matching Acquire is a
// programming error and panics.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.waiters) > 0 {
		ready := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(ready)
		return
	}

	l.held--
	if l.held < 0 {
		panic("limiter: release without matching acquire")
	}
}

// Do runs fn while holding a slot, releasing it on every exit path including
// panics. It returns ctx's error if the slot could not be acquired.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Held reports how many slots are currently occupied.
func (l *Limiter) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Waiting reports how many callers are queued for a slot.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}
