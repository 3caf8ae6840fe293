package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	tkerrors "github.com/vnykmshr/tickwork/pkg/common/errors"
	"github.com/vnykmshr/tickwork/pkg/common/validation"
)

// ErrPoolClosed is returned when submitting to or resizing a pool after Shutdown.
var ErrPoolClosed = fmt.Errorf("workerpool: %w", tkerrors.ErrClosed)

// ErrTaskPanicked is wrapped by the error recorded for a task that panicked.
var ErrTaskPanicked = errors.New("workerpool: task panicked")

// ErrTaskDiscarded is recorded for tasks removed by ClearQueue.
var ErrTaskDiscarded = errors.New("workerpool: task discarded")

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// unwrapper is implemented by tasks that decorate another task. Results and
// hooks report the innermost task.
type unwrapper interface {
	Unwrap() Task
}

func unwrapTask(task Task) Task {
	for {
		u, ok := task.(unwrapper)
		if !ok {
			return task
		}
		task = u.Unwrap()
	}
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during task execution, including a
	// recovered panic or ErrPoolClosed for a task discarded by Shutdown(false).
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies which worker executed the task, or -1 if none did
	WorkerID int
}

// Pool represents a worker pool that can execute tasks concurrently.
type Pool interface {
	// Submit adds a task to the queue. It never blocks on a busy pool.
	// Returns ErrPoolClosed once Shutdown has been called.
	Submit(task Task) (*Future, error)

	// SubmitWithContext is Submit with a context passed to the task's Execute.
	SubmitWithContext(ctx context.Context, task Task) (*Future, error)

	// Resize changes the number of workers. Shrinking lets the removed workers
	// finish their current task first.
	Resize(workers int) error

	// Shutdown stops the pool. With wait set, queued tasks run first;
	// otherwise they are discarded. The returned channel closes once every
	// worker has exited. Calling Shutdown again returns the same channel.
	Shutdown(wait bool) <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// Idle returns the number of workers waiting for a task.
	Idle() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ClearQueue discards queued tasks and returns how many were removed.
	ClearQueue() int

	// TotalSubmitted returns the total number of tasks submitted to the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed by the pool.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// Workers is the initial number of workers.
	Workers int `default:"4" validate:"min=1"`

	// TaskTimeout is the default timeout for individual task execution.
	// Zero means no timeout.
	TaskTimeout time.Duration `validate:"min=0"`

	// Logger receives worker lifecycle and task failure logs. Nil means no logging.
	Logger *zap.Logger `validate:"-"`

	// PanicHandler is called when a task panics. The panic is always
	// recorded in the task's Result as well.
	PanicHandler func(task Task, recovered any) `validate:"-"`

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int) `validate:"-"`

	// OnWorkerStop is called when a worker stops.
	OnWorkerStop func(workerID int) `validate:"-"`

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task Task) `validate:"-"`

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(workerID int, result Result) `validate:"-"`
}

// WorkerPool runs submitted tasks on a resizable set of goroutines fed from
// an unbounded FIFO queue.
type WorkerPool struct {
	config Config
	logger *zap.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    *queue.Queue
	workers  []*worker
	nextID   int
	idle     int
	draining bool
	closed   bool

	wg           sync.WaitGroup
	shutdownOnce sync.Once
	done         chan struct{}

	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64
}

// worker represents a single worker in the pool. stop is guarded by the pool mutex.
type worker struct {
	id   int
	pool *WorkerPool
	stop bool
}

// job is a queued task together with its submission context and future.
type job struct {
	task   Task
	ctx    context.Context
	future *Future
}

// New creates a worker pool with the given number of workers. It panics if
// workers is not positive.
func New(workers int) *WorkerPool {
	if err := validation.ValidatePositive("workerpool", "Workers", workers); err != nil {
		panic(err)
	}
	p, err := NewWithConfig(Config{Workers: workers})
	if err != nil {
		panic(err)
	}
	return p
}

// NewWithConfig creates a new worker pool with the specified configuration.
// Zero fields take their defaults; invalid values yield a *errors.ValidationError.
func NewWithConfig(config Config) (*WorkerPool, error) {
	if err := validation.Struct("workerpool", &config); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &WorkerPool{
		config: config,
		logger: logger.Named("workerpool"),
		queue:  queue.New(),
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	p.spawn(config.Workers)
	p.mu.Unlock()

	return p, nil
}

// spawn starts n workers. Callers must hold p.mu.
func (p *WorkerPool) spawn(n int) {
	for i := 0; i < n; i++ {
		w := &worker{id: p.nextID, pool: p}
		p.nextID++
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run()
	}
}
