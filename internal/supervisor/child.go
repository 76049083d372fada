package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// Child is the single owner of the running server process. Forwarding and
// the exit wait may run on different goroutines.
type Child struct {
	cmd *exec.Cmd
	pid int

	once   sync.Once
	exited chan struct{}
}

func newChild(cmd *exec.Cmd) *Child {
	return &Child{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		exited: make(chan struct{}),
	}
}

// PID returns the child's process id.
func (c *Child) PID() int {
	return c.pid
}

// Exited is closed once the child has been reaped.
func (c *Child) Exited() <-chan struct{} {
	return c.exited
}

// ForwardInterrupt sends SIGINT to the child at most once per run. It is a
// no-op after the child has exited or after an earlier call, and reports
// whether this call delivered the signal.
func (c *Child) ForwardInterrupt() (bool, error) {
	var (
		sent bool
		err  error
	)
	c.once.Do(func() {
		select {
		case <-c.exited:
			return
		default:
		}

		err = c.cmd.Process.Signal(syscall.SIGINT)
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
			return
		}
		sent = err == nil
	})
	return sent, err
}

// wait blocks until the child exits and returns its exit code. A child
// killed by a signal has no exit code; that is reported as 0 with signaled
// set.
func (c *Child) wait() (code int, signaled bool, err error) {
	defer close(c.exited)

	err = c.cmd.Wait()
	if err == nil {
		return 0, false, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false, err
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 0, true, nil
	}
	return exitErr.ExitCode(), false, nil
}
