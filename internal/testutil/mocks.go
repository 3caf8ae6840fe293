package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Clock is the time source RecordingTask stamps runs with.
type Clock interface {
	Now() time.Time
}

// RecordingTask is a task that records the clock time of every run. It
// satisfies workerpool.Task.
type RecordingTask struct {
	mu    sync.Mutex
	clock Clock
	runs  []time.Time
	err   error
	panic any
	ran   chan time.Time
}

// NewRecordingTask creates a RecordingTask stamping runs with clock.
func NewRecordingTask(clock Clock) *RecordingTask {
	return &RecordingTask{
		clock: clock,
		ran:   make(chan time.Time, 1024),
	}
}

// Execute records the run and then returns the configured error or panics.
func (r *RecordingTask) Execute(context.Context) error {
	now := r.clock.Now()

	r.mu.Lock()
	r.runs = append(r.runs, now)
	err, p := r.err, r.panic
	r.mu.Unlock()

	r.ran <- now

	if p != nil {
		panic(p)
	}
	return err
}

// Ran delivers the clock time of each run as it happens.
func (r *RecordingTask) Ran() <-chan time.Time {
	return r.ran
}

// Count returns the number of runs.
func (r *RecordingTask) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// FailWith makes subsequent runs return err.
func (r *RecordingTask) FailWith(err error) *RecordingTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// PanicWith makes subsequent runs panic with v.
func (r *RecordingTask) PanicWith(v any) *RecordingTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panic = v
	return r
}

// ErrSimulated is returned by tasks configured to fail in tests.
var ErrSimulated = errors.New("simulated error")

// NewObservedLogger returns a logger that records entries at or above level.
func NewObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}
