// Package runner runs external executables with a wall-clock deadline.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/browsersearch/pkg/logger"
)

// ErrInvalidTimeout is returned when Run is called with a non-positive timeout.
var ErrInvalidTimeout = errors.New("timeout must be greater than zero")

// defaultWaitDelay bounds how long Run waits for output pipes after the child is signalled.
const defaultWaitDelay = 2 * time.Second

// TimeoutError is returned when the process outlives its deadline.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %dms", e.Name, e.Timeout.Milliseconds())
}

// ExitError is returned when the process exits with a non-zero code.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %s", e.Name, e.Stderr)
	}
	return fmt.Sprintf("%s failed: exit code %d", e.Name, e.Code)
}

// NotFoundError is returned when the executable cannot be located.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: install it and make sure it is on PATH", e.Name)
}

// Commander runs one command and returns its standard output.
type Commander interface {
	Run(ctx context.Context, name string, args []string, timeout time.Duration) (string, error)
}

// Runner executes commands on the local system. The zero value is not usable; use New.
type Runner struct {
	log       *zap.Logger
	waitDelay time.Duration
	terminate func(*os.Process) error
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger used for run diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = logger.OrNop(l) }
}

// WithTerminate replaces how a child is stopped when its deadline fires.
func WithTerminate(fn func(*os.Process) error) Option {
	return func(r *Runner) { r.terminate = fn }
}

// WithWaitDelay bounds the wait for I/O after the child has been signalled.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) { r.waitDelay = d }
}

// New creates a Runner. By default a timed-out child receives SIGTERM.
func New(opts ...Option) *Runner {
	r := &Runner{
		log:       zap.NewNop(),
		waitDelay: defaultWaitDelay,
		terminate: func(p *os.Process) error { return p.Signal(syscall.SIGTERM) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts name with args and waits for it to exit or for timeout to elapse.
// On exit code 0 it returns the captured standard output.
func (r *Runner) Run(ctx context.Context, name string, args []string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		return "", ErrInvalidTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Cancel = func() error { return r.terminate(cmd.Process) }
	cmd.WaitDelay = r.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			return "", &NotFoundError{Name: name}
		}
		return "", fmt.Errorf("failed to start %s: %w", name, err)
	}

	err := cmd.Wait()
	elapsed := time.Since(start)

	// A signalled child also reports an ExitError, so the deadline is checked first.
	if err != nil && runCtx.Err() != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		r.log.Warn("command timed out",
			zap.String("command", name),
			zap.Strings("args", args),
			zap.Duration("timeout", timeout),
		)
		return "", &TimeoutError{Name: name, Timeout: timeout}
	}

	r.log.Debug("command finished",
		zap.String("command", name),
		zap.Strings("args", args),
		zap.Duration("elapsed", elapsed),
		zap.Int("stdout_bytes", stdout.Len()),
	)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{
				Name:   name,
				Code:   exitErr.ExitCode(),
				Stderr: strings.TrimSpace(stderr.String()),
			}
		}
		return "", fmt.Errorf("%s failed: %w", name, err)
	}

	return stdout.String(), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
