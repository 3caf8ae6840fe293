package waiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/goleak"

	"github.com/vnykmshr/tickwork/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func TestInterruptBeforeWaitForever(t *testing.T) {
	w := New(nil)
	w.Interrupt()

	done := make(chan bool, 1)
	go func() { done <- w.WaitForever() }()

	select {
	case interrupted := <-done:
		testutil.AssertEqual(t, interrupted, true)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("WaitForever did not return after a prior interrupt")
	}
}

func TestInterruptsCollapse(t *testing.T) {
	w := New(nil)
	for i := 0; i < 5; i++ {
		w.Interrupt()
	}

	testutil.AssertEqual(t, w.WaitForever(), true)

	// The single pending flag was consumed; a zero wait sees nothing.
	testutil.AssertEqual(t, w.WaitFor(0), false)
}

func TestWaitForTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	w := New(clock)

	done := make(chan bool, 1)
	go func() { done <- w.WaitFor(time.Minute) }()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(59 * time.Second)
	select {
	case <-done:
		t.Fatal("woke before the deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case interrupted := <-done:
		testutil.AssertEqual(t, interrupted, false)
	case <-ctx.Done():
		t.Fatal("WaitFor did not time out")
	}
}

func TestWaitForInterrupted(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	w := New(clock)

	done := make(chan bool, 1)
	go func() { done <- w.WaitFor(time.Hour) }()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, clock.BlockUntilContext(ctx, 1))

	w.Interrupt()
	select {
	case interrupted := <-done:
		testutil.AssertEqual(t, interrupted, true)
	case <-ctx.Done():
		t.Fatal("WaitFor ignored the interrupt")
	}
}

func TestWaitUntilPast(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	w := New(clock)

	testutil.AssertEqual(t, w.WaitUntil(epoch.Add(-time.Second)), false)

	w.Interrupt()
	testutil.AssertEqual(t, w.WaitUntil(epoch), true)
	testutil.AssertEqual(t, w.WaitUntil(epoch), false)
}

func TestWaitUntilFuture(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	w := New(clock)

	done := make(chan bool, 1)
	go func() { done <- w.WaitUntil(epoch.Add(10 * time.Second)) }()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(10 * time.Second)
	select {
	case interrupted := <-done:
		testutil.AssertEqual(t, interrupted, false)
	case <-ctx.Done():
		t.Fatal("WaitUntil did not wake at its deadline")
	}
}

func TestTimeoutClearsPendingInterrupt(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	w := New(clock)

	done := make(chan bool, 1)
	go func() { done <- w.WaitFor(time.Second) }()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second)
	<-done

	// Nothing pending after the wake.
	testutil.AssertEqual(t, w.WaitFor(0), false)
}

func TestConcurrentInterrupts(t *testing.T) {
	w := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Interrupt()
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), testutil.TestTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.WaitForever()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("WaitForever did not observe concurrent interrupts")
	}
}
