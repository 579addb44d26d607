package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// defaultWaitDelay bounds how long output pipes held open by stray
// descendants can delay Wait after the child has exited or been killed.
const defaultWaitDelay = 500 * time.Millisecond

// ProcessRunner implements CommandRunner by spawning a local process in its
// own process group. Timeout, output overflow and completion all end with the
// whole group being killed.
type ProcessRunner struct {
	WaitDelay time.Duration
}

// Run executes the command described by spec
//
//nolint:gocritic // RunSpec is passed by value like ExecuteRequest in the executors
func (r ProcessRunner) Run(ctx context.Context, spec RunSpec) (RunOutcome, error) {
	if len(spec.Args) < 1 {
		return RunOutcome{}, fmt.Errorf("no command provided")
	}
	if spec.Timeout <= 0 {
		return RunOutcome{}, fmt.Errorf("timeout must be positive")
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, spec.Timeout)
	defer cancelTimeout()
	runCtx, cancelRun := context.WithCancel(timeoutCtx)
	defer cancelRun()

	capture := newOutputCapture(spec.MaxOutputBytes, cancelRun)

	cmd := exec.CommandContext(runCtx, spec.Args[0], spec.Args[1:]...) //nolint:gosec // Running user code is the purpose of the sandbox
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = spec.Stdin
	cmd.Stdout = capture.stream(&capture.stdout)
	cmd.Stderr = capture.stream(&capture.stderr)
	setProcessGroup(cmd)

	var killed atomic.Bool
	cmd.Cancel = func() error {
		killed.Store(true)
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	if err := cmd.Start(); err != nil {
		return RunOutcome{}, fmt.Errorf("failed to start %s: %w", spec.Args[0], err)
	}

	waitErr := cmd.Wait()
	// Descendants that outlived the child go with it.
	_ = killProcessGroup(cmd)
	capture.close()

	outcome := RunOutcome{
		Stdout:       capture.stdout.String(),
		Stderr:       capture.stderr.String(),
		ExitCode:     exitCodeOf(cmd.ProcessState),
		MemoryUsedMB: memoryUsedMB(cmd.ProcessState),
	}

	switch {
	case capture.isExceeded():
		outcome.OutputExceeded = true
		return outcome, nil
	case killed.Load() && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		outcome.TimedOut = true
		return outcome, nil
	case killed.Load() && ctx.Err() != nil:
		return outcome, fmt.Errorf("execution cancelled: %w", ctx.Err())
	}

	if waitErr != nil && cmd.ProcessState == nil {
		return outcome, fmt.Errorf("failed to wait for %s: %w", spec.Args[0], waitErr)
	}

	return outcome, nil
}

// outputCapture collects stdout and stderr under one shared byte budget.
// Once closed, late writes from leaked descendants are dropped.
type outputCapture struct {
	mu       sync.Mutex
	limit    int
	used     int
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	exceeded bool
	closed   bool
	onExceed func()
}

func newOutputCapture(limit int, onExceed func()) *outputCapture {
	return &outputCapture{limit: limit, onExceed: onExceed}
}

type captureStream struct {
	c   *outputCapture
	buf *bytes.Buffer
}

func (c *outputCapture) stream(buf *bytes.Buffer) captureStream {
	return captureStream{c: c, buf: buf}
}

func (s captureStream) Write(p []byte) (int, error) {
	c := s.c
	c.mu.Lock()
	if c.closed || c.exceeded {
		c.mu.Unlock()
		return len(p), nil
	}
	if c.limit > 0 {
		room := c.limit - c.used
		if len(p) > room {
			s.buf.Write(p[:room])
			c.used = c.limit
			c.exceeded = true
			c.mu.Unlock()
			c.onExceed()
			return len(p), nil
		}
	}
	s.buf.Write(p)
	c.used += len(p)
	c.mu.Unlock()
	return len(p), nil
}

func (c *outputCapture) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *outputCapture) isExceeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exceeded
}
