// Package runner executes external commands as scheduled tasks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/tickwork/pkg/scheduling/concurrency"
)

const (
	// maxOutput is how much trailing command output is kept for logging.
	maxOutput = 4 << 10

	// waitDelay bounds how long output is awaited after the command exits
	// or is killed, for descendants that still hold its stdout.
	waitDelay = time.Second
)

// Command runs an external program. It implements workerpool.Task.
type Command struct {
	// Name identifies the job in logs.
	Name string

	// Args is the program followed by its arguments. No shell is involved.
	Args []string

	// Dir is the working directory. Empty means the daemon's own.
	Dir string

	// Env adds variables on top of the daemon's environment.
	Env map[string]string

	// Timeout kills the process when exceeded. Zero means no limit
	// beyond the pool's task timeout.
	Timeout time.Duration

	// Limiter bounds overlapping runs of this command. Nil means no bound.
	Limiter *concurrency.Limiter

	// Queue makes a run wait for a Limiter permit instead of being skipped.
	Queue bool

	// Logger receives one entry per run. Nil means no logging.
	Logger *zap.Logger
}

// ExitError reports a command that ran but did not succeed.
type ExitError struct {
	Name     string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("job %s: exit code %d: %v", e.Name, e.ExitCode, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Execute starts the command and waits for it to finish.
func (c *Command) Execute(ctx context.Context) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("job %s: empty command", c.Name)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if c.Limiter != nil {
		if c.Queue {
			if !c.Limiter.TryAcquire() {
				logger.Debug("job queued behind previous run",
					zap.String("job", c.Name),
					zap.Int("active", c.Limiter.InUse()),
					zap.Int("waiting", c.Limiter.Waiting()+1))
				if err := c.Limiter.Wait(ctx); err != nil {
					return fmt.Errorf("job %s: waiting for previous run: %w", c.Name, err)
				}
			}
		} else if !c.Limiter.TryAcquire() {
			logger.Warn("job skipped, previous run still active",
				zap.String("job", c.Name),
				zap.Int("active", c.Limiter.InUse()),
				zap.Int("limit", c.Limiter.Capacity()))
			return nil
		}
		defer c.Limiter.Release()
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.environ()...)
	}

	out := &tail{max: maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	fields := []zap.Field{
		zap.String("job", c.Name),
		zap.Duration("duration", duration),
		zap.Int("output_bytes", out.total),
	}

	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		logger.Warn("job failed", append(fields,
			zap.Int("exit_code", code),
			zap.String("output", out.String()),
			zap.Error(err))...)
		return &ExitError{Name: c.Name, ExitCode: code, Output: out.String(), Err: err}
	}

	logger.Info("job finished", append(fields, zap.Int("exit_code", 0))...)
	logger.Debug("job output", zap.String("job", c.Name), zap.String("output", out.String()))
	return nil
}

// environ renders Env as sorted KEY=value pairs.
func (c *Command) environ() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// tail is an io.Writer that keeps only the last max bytes written.
type tail struct {
	mu    sync.Mutex
	max   int
	buf   []byte
	total int
}

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total += len(p)
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
