// Package concurrency bounds how many runs of something may be active at
// once. tickworkd uses it to keep slow jobs from piling up when their next
// due time arrives before the previous run has finished.
package concurrency

import (
	"context"
	"sync"

	"github.com/vnykmshr/tickwork/pkg/common/validation"
)

const module = "concurrency"

// Limiter is a counting semaphore with FIFO waiters.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  []chan struct{}
}

// New creates a limiter allowing capacity concurrent holders.
func New(capacity int) (*Limiter, error) {
	if err := validation.ValidatePositive(module, "capacity", capacity); err != nil {
		return nil, err
	}
	return &Limiter{capacity: capacity}, nil
}

// TryAcquire takes a permit if one is free. It never blocks.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.waiters) == 0 && l.inUse < l.capacity {
		l.inUse++
		return true
	}
	return false
}

// Wait blocks until a permit is free or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if len(l.waiters) == 0 && l.inUse < l.capacity {
		l.inUse++
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
		defer l.mu.Unlock()
		select {
		case <-ready:
			// Granted while we were canceled; hand the permit on.
			l.inUse--
			l.grant()
		default:
			l.remove(ready)
		}
		return ctx.Err()
	}
}

// Release returns a permit. It panics if nothing is held.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inUse == 0 {
		panic("concurrency: release without acquire")
	}
	l.inUse--
	l.grant()
}

// Capacity returns the limit.
func (l *Limiter) Capacity() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capacity
}

// InUse returns the number of permits held.
func (l *Limiter) InUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse
}

// Waiting returns the number of blocked Wait calls.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

// grant hands free permits to waiters in arrival order. Must be called
// with l.mu held.
func (l *Limiter) grant() {
	for len(l.waiters) > 0 && l.inUse < l.capacity {
		close(l.waiters[0])
		l.waiters = l.waiters[1:]
		l.inUse++
	}
}

func (l *Limiter) remove(ready chan struct{}) {
	for i, w := range l.waiters {
		if w == ready {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}
