// Package supervisor runs the server as a child process, relays the
// platform's shutdown request to it and reports how it exited.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/psantana5/meshrender/internal/logging"
	"github.com/psantana5/meshrender/internal/observe"
	"github.com/psantana5/meshrender/internal/report"
)

// ShutdownSignals are the platform requests that trigger the interrupt forward.
var ShutdownSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}

// Command is the program the supervisor executes.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string // nil inherits the supervisor's environment
}

// ServerCommand builds the server invocation: the script runs under node
// with the data path and port as startup arguments.
func ServerCommand(node, script, dataDir string, port int) Command {
	return Command{
		Path: node,
		Args: []string{script, "--datapath", dataDir, "--port", strconv.Itoa(port)},
	}
}

// Options configure one supervised run.
type Options struct {
	Command Command
	RunID   string // generated when empty

	// Standard streams default to the supervisor's own.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Signals replaces the OS subscription to ShutdownSignals when set.
	Signals <-chan os.Signal

	Metrics *report.Metrics
	Logger  *logging.Logger
}

// Supervisor owns exactly one child per Run.
type Supervisor struct {
	opts    Options
	runID   string
	logger  *logging.Logger
	metrics *report.Metrics
}

// New creates a supervisor, filling defaults for unset options.
func New(opts Options) *Supervisor {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = report.Global()
	}

	return &Supervisor{
		opts:    opts,
		runID:   runID,
		logger:  logger.WithField("component", "supervisor").WithField("run_id", runID),
		metrics: metrics,
	}
}

// RunID identifies this run in logs and the result.
func (s *Supervisor) RunID() string {
	return s.runID
}

// Run starts the child and blocks until it exits. A shutdown signal or the
// cancellation of ctx forwards one interrupt to the child; the child decides
// when to exit. Only a failure to start or reap the child is an error.
func (s *Supervisor) Run(ctx context.Context) (*report.Result, error) {
	cmd := exec.Command(s.opts.Command.Path, s.opts.Command.Args...)
	cmd.Dir = s.opts.Command.Dir
	cmd.Env = s.opts.Command.Env

	// Own process group: a terminal's ^C reaches only the supervisor, which
	// then forwards the single interrupt itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	cmd.Stdin = s.opts.Stdin
	cmd.Stdout = s.opts.Stdout
	cmd.Stderr = s.opts.Stderr

	// Subscribe before starting so a signal that arrives during Start is
	// still relayed.
	sigs := s.opts.Signals
	if sigs == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, ShutdownSignals...)
		defer signal.Stop(ch)
		sigs = ch
	}

	timing := observe.NewTiming()
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: s.opts.Command.Path, Err: err}
	}

	child := newChild(cmd)
	s.metrics.ChildStarted()
	s.logger.Info("server started", logging.Fields{
		"pid":  child.PID(),
		"path": s.opts.Command.Path,
		"args": s.opts.Command.Args,
	})

	relayed := make(chan string, 1)
	go func() {
		relayed <- s.relay(ctx, sigs, child)
	}()

	code, signaled, err := child.wait()
	timing.Complete()
	trigger := <-relayed

	if err != nil {
		return nil, fmt.Errorf("failed waiting for server (pid %d): %w", child.PID(), err)
	}

	result := report.NewResult(s.runID, child.PID(), code, timing.StartedAt, timing.CompletedAt)
	result.Signaled = signaled
	result.ForwardedSignal = trigger
	s.metrics.RecordResult(result)

	s.logger.Info("server exited", logging.Fields{
		"pid":       child.PID(),
		"exit_code": code,
		"signaled":  signaled,
	})
	return result, nil
}

// relay forwards the first shutdown request to child and returns its name
// once the child has exited. Later requests are logged and dropped.
func (s *Supervisor) relay(ctx context.Context, sigs <-chan os.Signal, child *Child) string {
	var trigger string
	done := ctx.Done()

	for {
		select {
		case <-child.Exited():
			return trigger
		case sig, ok := <-sigs:
			if !ok {
				sigs = nil
				continue
			}
			if s.forward(child, sig.String()) {
				trigger = sig.String()
			}
		case <-done:
			done = nil
			if s.forward(child, "context canceled") {
				trigger = "context canceled"
			}
		}
	}
}

func (s *Supervisor) forward(child *Child, reason string) bool {
	fields := logging.Fields{"pid": child.PID(), "trigger": reason}

	sent, err := child.ForwardInterrupt()
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Error("failed to forward interrupt to server", fields)
		return false
	}
	if !sent {
		s.logger.Debug("shutdown already requested, not forwarding again", fields)
		return false
	}

	s.metrics.SignalForwarded()
	s.logger.Info("forwarded interrupt to server", fields)
	return true
}
