package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/vnykmshr/tickwork/pkg/common/errors"
	"github.com/vnykmshr/tickwork/pkg/common/validation"
	"github.com/vnykmshr/tickwork/pkg/metrics"
	"github.com/vnykmshr/tickwork/pkg/scheduling/crontab"
	"github.com/vnykmshr/tickwork/pkg/scheduling/waiter"
	"github.com/vnykmshr/tickwork/pkg/scheduling/workerpool"
)

const module = "scheduler"

// Config holds scheduler configuration.
type Config struct {
	// Name labels logs and metrics.
	Name string `default:"default" validate:"required"`

	// Workers sizes the pool the scheduler creates when Pool is nil.
	Workers int `default:"4" validate:"min=1"`

	// MaxTasks caps the number of pending tasks.
	MaxTasks int `default:"10000" validate:"min=1"`

	// Pool runs dispatched tasks. If nil, the scheduler creates and owns one.
	// Submit must not block, since it is called with the store locked.
	Pool workerpool.Pool `validate:"-"`

	// Location is used for ScheduleAt and cron evaluation (default: time.Local).
	Location *time.Location `validate:"-"`

	// Clock is the time source (default: the real clock).
	Clock clockwork.Clock `validate:"-"`

	// Logger receives scheduler logs (default: no logging).
	Logger *zap.Logger `validate:"-"`

	// Metrics receives scheduler metrics. Nil disables them.
	Metrics *metrics.Registry `validate:"-"`
}

// Scheduler dispatches tasks to a worker pool when they fall due. A single
// loop goroutine sleeps until the earliest pending due time and is woken
// early whenever a task is added.
type Scheduler struct {
	name     string
	pool     workerpool.Pool
	ownPool  bool
	location *time.Location
	clock    clockwork.Clock
	maxTasks int
	logger   *zap.Logger
	metrics  *metrics.Registry
	waiter   *waiter.Waiter

	mu      sync.Mutex
	store   *store
	nextID  uint64
	running bool
	stopped bool

	loopDone chan struct{}
	stopOnce sync.Once
	stopDone chan struct{}
}

// New creates a scheduler. Tasks may be added before Start.
func New(cfg Config) (*Scheduler, error) {
	if err := validation.Struct(module, &cfg); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(module).With(zap.String("scheduler", cfg.Name))

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	pool := cfg.Pool
	ownPool := false
	if pool == nil {
		wp, err := workerpool.NewWithConfig(workerpool.Config{
			Workers: cfg.Workers,
			Logger:  cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		pool = wp
		if cfg.Metrics != nil {
			pool = workerpool.Instrument(wp, cfg.Name, cfg.Metrics)
		}
		ownPool = true
	}

	return &Scheduler{
		name:     cfg.Name,
		pool:     pool,
		ownPool:  ownPool,
		location: location,
		clock:    clock,
		maxTasks: cfg.MaxTasks,
		logger:   logger,
		metrics:  cfg.Metrics,
		waiter:   waiter.New(clock),
		store:    newStore(),
		loopDone: make(chan struct{}),
		stopDone: make(chan struct{}),
	}, nil
}

// ScheduleOnce runs fn once at the given instant. An instant in the past
// runs on the next loop iteration.
func (s *Scheduler) ScheduleOnce(at time.Time, fn workerpool.Task, opts ...TaskOption) error {
	if err := validation.ValidateNotNil(module, "fn", fn); err != nil {
		return err
	}
	if at.IsZero() {
		return errors.NewValidationError(module, "at", at, "cannot be zero").
			WithHint("use ScheduleAfter for relative times")
	}
	return s.add(newTask(KindOnce, fn, opts), at)
}

// ScheduleAfter runs fn once after delay.
func (s *Scheduler) ScheduleAfter(delay time.Duration, fn workerpool.Task, opts ...TaskOption) error {
	if err := validation.ValidateNotNil(module, "fn", fn); err != nil {
		return err
	}
	if delay < 0 {
		return errors.NewValidationError(module, "delay", delay, "cannot be negative")
	}
	return s.add(newTask(KindOnce, fn, opts), s.clock.Now().Add(delay))
}

// ScheduleAt runs fn once at a time given as "HH:MM:SS", "YYYY-MM-DD HH:MM:SS"
// or "YYYY/MM/DD HH:MM:SS" in the scheduler's location. A bare time of day
// that has already passed today means tomorrow.
func (s *Scheduler) ScheduleAt(value string, fn workerpool.Task, opts ...TaskOption) error {
	if err := validation.ValidateNotNil(module, "fn", fn); err != nil {
		return err
	}
	at, err := ParseAt(value, s.clock.Now().In(s.location))
	if err != nil {
		return err
	}
	return s.add(newTask(KindOnce, fn, opts), at)
}

// ScheduleEvery runs fn every d, starting d from now. The cadence is
// measured between due times, so slow runs do not make it drift.
func (s *Scheduler) ScheduleEvery(d time.Duration, fn workerpool.Task, opts ...TaskOption) error {
	if err := validation.ValidateNotNil(module, "fn", fn); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration(module, "every", d); err != nil {
		return err
	}
	t := newTask(KindEvery, fn, opts)
	t.every = d
	return s.add(t, s.clock.Now().Add(d))
}

// ScheduleCron runs fn on a five-field expression evaluated by crontab.Rule,
// where day-of-month and weekday must both match when both are set.
func (s *Scheduler) ScheduleCron(expr string, fn workerpool.Task, opts ...TaskOption) error {
	if err := validation.ValidateNotNil(module, "fn", fn); err != nil {
		return err
	}
	rule, err := crontab.Parse(expr)
	if err != nil {
		return err
	}
	t := newTask(KindCron, fn, opts)
	t.rule = rule

	due, ok := t.nextDueTime(s.clock.Now().In(s.location))
	if !ok {
		return fmt.Errorf("%w: cron %q never fires", errors.ErrInvalidFormat, expr)
	}
	return s.add(t, due)
}

// ScheduleInterval runs fn immediately and then again d after each run
// completes, so runs of one task never overlap.
func (s *Scheduler) ScheduleInterval(d time.Duration, fn workerpool.Task, opts ...TaskOption) error {
	if err := validation.ValidateNotNil(module, "fn", fn); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration(module, "interval", d); err != nil {
		return err
	}
	t := newTask(KindInterval, fn, opts)
	t.every = d
	return s.add(t, s.clock.Now())
}

// ScheduleCronSpec runs fn on a full crontab expression (ranges, lists,
// steps, an optional seconds field and descriptors like "@hourly").
func (s *Scheduler) ScheduleCronSpec(expr string, fn workerpool.Task, opts ...TaskOption) error {
	if err := validation.ValidateNotNil(module, "fn", fn); err != nil {
		return err
	}
	spec, err := ParseCronSpec(expr)
	if err != nil {
		return err
	}
	t := newTask(KindCronSpec, fn, opts)
	t.spec = spec
	t.expr = expr

	due, ok := t.nextDueTime(s.clock.Now().In(s.location))
	if !ok {
		return fmt.Errorf("%w: cron spec %q never fires", errors.ErrInvalidFormat, expr)
	}
	return s.add(t, due)
}

// add assigns an ID and inserts a new task, subject to MaxTasks.
func (s *Scheduler) add(t *Task, due time.Time) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("scheduler %s: %w", s.name, errors.ErrClosed)
	}
	if s.store.len() >= s.maxTasks {
		s.mu.Unlock()
		return fmt.Errorf("scheduler %s: %d pending tasks: %w", s.name, s.maxTasks, errors.ErrCapacityExceeded)
	}
	s.nextID++
	t.id = s.nextID
	s.store.insert(due, t)
	size := s.store.len()
	s.mu.Unlock()

	s.waiter.Interrupt()

	s.logger.Debug("task scheduled", taskFields(t, due)...)
	if s.metrics != nil {
		s.metrics.TasksScheduled.WithLabelValues(s.name, t.kind.String()).Inc()
		s.metrics.StoreSize.WithLabelValues(s.name).Set(float64(size))
	}
	return nil
}

// rearm puts an already scheduled task back into the store. It is not
// subject to MaxTasks because the task was counted when first added.
func (s *Scheduler) rearm(t *Task, due time.Time) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.ErrClosed
	}
	s.store.insert(due, t)
	s.mu.Unlock()

	s.waiter.Interrupt()
	return nil
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler %s: %w", s.name, errors.ErrClosed)
	}
	if s.running {
		return fmt.Errorf("scheduler %s already running, call Stop() first", s.name)
	}

	s.running = true
	go s.run()

	s.logger.Info("scheduler started", zap.Int("pending", s.store.len()))
	return nil
}

// Stop ends the scheduling loop. Pending tasks are dropped; tasks already
// dispatched keep running. If the scheduler created its own pool, that pool
// is drained and shut down. The returned channel closes when all of this has
// finished. Stop is idempotent.
func (s *Scheduler) Stop() <-chan struct{} {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		running := s.running
		pending := s.store.len()
		s.mu.Unlock()

		s.waiter.Interrupt()

		go func() {
			defer close(s.stopDone)
			if running {
				<-s.loopDone
			}
			if s.ownPool {
				<-s.pool.Shutdown(true)
			}
			s.logger.Info("scheduler stopped", zap.Int("dropped", pending))
		}()
	})
	return s.stopDone
}

// Entries returns the pending tasks in due order.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.store.entries()
	out := make([]Entry, 0, len(pending))
	for _, e := range pending {
		out = append(out, Entry{
			ID:       e.task.id,
			Name:     e.task.name,
			Kind:     e.task.kind,
			Due:      e.due,
			Schedule: e.task.describe(e.due),
		})
	}
	return out
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.len()
}

// run is the scheduling loop.
func (s *Scheduler) run() {
	defer close(s.loopDone)

	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		due, ok := s.store.earliest()
		s.mu.Unlock()

		var interrupted bool
		if ok {
			interrupted = s.waiter.WaitUntil(due)
		} else {
			interrupted = s.waiter.WaitForever()
		}

		if s.metrics != nil {
			reason := "timeout"
			if interrupted {
				reason = "interrupt"
			}
			s.metrics.Wakeups.WithLabelValues(s.name, reason).Inc()
		}

		s.drain()
	}
}

// drain dispatches every task that is due and re-stages the recurring ones
// that the loop is responsible for.
func (s *Scheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	now := s.clock.Now()
	due := s.store.popDue(now)
	if len(due) == 0 {
		return
	}

	staged := make([]entry, 0, len(due))
	for _, e := range due {
		s.dispatch(e.task, e.due, now)

		if !e.task.Recurs() || e.task.RerunsAfterCompletion() {
			continue
		}
		next, ok := e.task.nextDueTime(e.due.In(s.location))
		if !ok {
			s.logger.Warn("recurring task has no further due time, dropping", taskFields(e.task, e.due)...)
			continue
		}
		staged = append(staged, entry{due: next, task: e.task})
	}

	for _, e := range staged {
		s.store.insert(e.due, e.task)
	}

	if s.metrics != nil {
		s.metrics.StoreSize.WithLabelValues(s.name).Set(float64(s.store.len()))
	}
}

// dispatch hands a due task to the pool. Callers must hold s.mu.
func (s *Scheduler) dispatch(t *Task, due, now time.Time) {
	s.logger.Debug("dispatching task", append(taskFields(t, due), zap.Duration("lag", now.Sub(due)))...)

	if _, err := s.pool.Submit(s.job(t)); err != nil {
		s.logger.Warn("task submission failed", append(taskFields(t, due), zap.Error(err))...)
		if t.RerunsAfterCompletion() {
			// No job will run to re-arm it, so the loop does.
			s.store.insert(now.Add(t.every), t)
		}
		return
	}

	if s.metrics != nil {
		s.metrics.TasksDispatched.WithLabelValues(s.name, t.kind.String()).Inc()
		s.metrics.DispatchLag.WithLabelValues(s.name).Observe(now.Sub(due).Seconds())
	}
}

// job wraps the task callback with failure reporting and, for interval
// tasks, re-arming once the callback has returned or panicked.
func (s *Scheduler) job(t *Task) workerpool.Task {
	return workerpool.TaskFunc(func(ctx context.Context) (err error) {
		if t.RerunsAfterCompletion() {
			defer func() {
				next, _ := t.nextDueTime(s.clock.Now())
				if rerr := s.rearm(t, next); rerr != nil {
					s.logger.Debug("interval task not re-armed", zap.Uint64("task_id", t.id), zap.Error(rerr))
				}
			}()
		}

		defer func() {
			if r := recover(); r != nil {
				s.taskFailed(t, fmt.Errorf("panic: %v", r))
				panic(r)
			}
		}()

		if err = t.fn.Execute(ctx); err != nil {
			s.taskFailed(t, err)
		}
		return err
	})
}

func (s *Scheduler) taskFailed(t *Task, err error) {
	s.logger.Error("task failed",
		zap.Uint64("task_id", t.id),
		zap.String("task_name", t.name),
		zap.Stringer("kind", t.kind),
		zap.Error(err))
	if s.metrics != nil {
		s.metrics.TasksFailed.WithLabelValues(s.name).Inc()
	}
}

func taskFields(t *Task, due time.Time) []zap.Field {
	return []zap.Field{
		zap.Uint64("task_id", t.id),
		zap.String("task_name", t.name),
		zap.Stringer("kind", t.kind),
		zap.Time("due", due),
	}
}
