package workerpool_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/vnykmshr/tickwork/pkg/scheduling/workerpool"
)

// Example demonstrates basic usage of the worker pool
func Example() {
	pool := workerpool.New(3)
	defer func() { <-pool.Shutdown(true) }()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		fmt.Println("Task executed")
		return nil
	})

	future, err := pool.Submit(task)
	if err != nil {
		log.Printf("Failed to submit task: %v", err)
		return
	}

	if err := future.Wait(context.Background()); err != nil {
		log.Printf("Task failed: %v", err)
	}

	// Output: Task executed
}

// Example_errorHandling shows that task errors and panics land in the future.
func Example_errorHandling() {
	pool := workerpool.New(1)
	defer func() { <-pool.Shutdown(true) }()

	failing, _ := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		return errors.New("disk full")
	}))
	panicking, _ := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		panic("boom")
	}))

	fmt.Println(failing.Result().Error)
	fmt.Println(errors.Is(panicking.Result().Error, workerpool.ErrTaskPanicked))

	// Output:
	// disk full
	// true
}

// Example_resize grows and shrinks the pool while work is queued.
func Example_resize() {
	pool := workerpool.New(1)

	var done int32
	for i := 0; i < 10; i++ {
		pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		}))
	}

	pool.Resize(4)
	pool.Resize(2)
	fmt.Println("workers:", pool.Size())

	<-pool.Shutdown(true)
	fmt.Println("completed:", atomic.LoadInt32(&done))

	// Output:
	// workers: 2
	// completed: 10
}

// Example_gracefulShutdown contrasts draining and discarding shutdowns.
func Example_gracefulShutdown() {
	pool := workerpool.New(1)
	release := make(chan struct{})
	started := make(chan struct{})

	pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	queued, _ := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		return nil
	}))

	done := pool.Shutdown(false)
	fmt.Println(errors.Is(queued.Result().Error, workerpool.ErrPoolClosed))

	close(release)
	<-done

	_, err := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error { return nil }))
	fmt.Println(err)

	// Output:
	// true
	// workerpool: resource is closed
}
