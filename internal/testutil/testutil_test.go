package testutil

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func TestWaitForInt32(t *testing.T) {
	var n int32
	go func() {
		for i := 0; i < 3; i++ {
			atomic.AddInt32(&n, 1)
		}
	}()
	WaitForInt32(t, &n, 3, time.Second)
}

func TestCallbackTrackerConcurrentMarks(t *testing.T) {
	tracker := NewCallbackTracker()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Mark()
		}()
	}
	wg.Wait()
	tracker.Mark("last")

	tracker.AssertCallCount(t, 11)
	AssertEqual(t, tracker.Value(), any("last"))
}

func TestRecordingTask(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	task := NewRecordingTask(&stepClock{now: start})
	ctx, cancel := WithTimeout(t)
	defer cancel()

	AssertNoError(t, task.Execute(ctx))
	AssertEqual(t, <-task.Ran(), start.Add(time.Minute))

	task.FailWith(ErrSimulated)
	AssertEqual(t, task.Execute(ctx), ErrSimulated)

	task.PanicWith("boom")
	func() {
		defer func() {
			AssertEqual(t, recover(), any("boom"))
		}()
		_ = task.Execute(ctx)
	}()
	AssertEqual(t, task.Count(), 3)
}

func TestObservedLoggerFiltersByLevel(t *testing.T) {
	logger, logs := NewObservedLogger(zapcore.WarnLevel)
	logger.Info("dropped")
	logger.Warn("kept")

	AssertEqual(t, logs.Len(), 1)
	AssertEqual(t, logs.All()[0].Message, "kept")
}
