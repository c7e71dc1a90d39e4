package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// signalRecorder records which processes were asked to terminate.
type signalRecorder struct {
	mu   sync.Mutex
	pids []int
}

func (s *signalRecorder) terminate(p *os.Process) error {
	s.mu.Lock()
	s.pids = append(s.pids, p.Pid)
	s.mu.Unlock()
	return p.Signal(syscall.SIGTERM)
}

func (s *signalRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pids)
}

func TestRunSuccess(t *testing.T) {
	r := New()
	out, err := r.Run(context.Background(), "sh", []string{"-c", "printf hello"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRunCapturesLargeOutput(t *testing.T) {
	r := New()
	out, err := r.Run(context.Background(), "sh", []string{"-c", "head -c 200000 /dev/zero | tr '\\0' a"}, 5*time.Second)
	require.NoError(t, err)
	assert.Len(t, out, 200000)
}

func TestRunNonZeroExit(t *testing.T) {
	r := New()

	t.Run("with stderr", func(t *testing.T) {
		_, err := r.Run(context.Background(), "sh", []string{"-c", "echo boom >&2; exit 3"}, 5*time.Second)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 3, exitErr.Code)
		assert.Equal(t, "boom", exitErr.Stderr)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("without stderr", func(t *testing.T) {
		_, err := r.Run(context.Background(), "sh", []string{"-c", "exit 4"}, 5*time.Second)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Contains(t, err.Error(), "exit code 4")
	})
}

func TestRunTimeoutTerminatesChild(t *testing.T) {
	rec := &signalRecorder{}
	r := New(WithTerminate(rec.terminate))

	start := time.Now()
	out, err := r.Run(context.Background(), "sleep", []string{"10"}, 150*time.Millisecond)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Empty(t, out)
	assert.Equal(t, 150*time.Millisecond, timeoutErr.Timeout)
	assert.Contains(t, err.Error(), "150ms")
	assert.Equal(t, 1, rec.count(), "child should be signalled exactly once")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunTimeoutDiscardsPartialOutput(t *testing.T) {
	r := New()
	out, err := r.Run(context.Background(), "sh", []string{"-c", "echo partial; exec sleep 10"}, 200*time.Millisecond)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Empty(t, out)
}

func TestRunNotFound(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-7f3a", nil, time.Second)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "definitely-not-a-real-binary-7f3a", nf.Name)
	assert.Contains(t, err.Error(), "definitely-not-a-real-binary-7f3a")
	assert.Contains(t, err.Error(), "install")
}

func TestRunInvalidTimeout(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), "sh", []string{"-c", "true"}, 0)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestRunParentCancelled(t *testing.T) {
	rec := &signalRecorder{}
	r := New(WithTerminate(rec.terminate))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, "sleep", []string{"10"}, 10*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 1, rec.count())
}

func TestRunConcurrent(t *testing.T) {
	r := New()

	const n = 8
	var wg sync.WaitGroup
	outs := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = r.Run(context.Background(), "sh", []string{"-c", fmt.Sprintf("printf %d", i)}, 5*time.Second)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprint(i), outs[i])
	}
}
