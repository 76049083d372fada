package report

import (
	"fmt"
	"time"

	"github.com/psantana5/meshrender/internal/logging"
)

// Result is the immutable record of one supervised run. It is the source
// for the run metrics and the summary log line.
type Result struct {
	// Identity
	RunID string `json:"run_id"`
	PID   int    `json:"pid"`

	// Timing
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Outcome
	ExitCode int  `json:"exit_code"`
	Signaled bool `json:"signaled"` // child was killed by a signal and has no exit code

	// ForwardedSignal is the platform signal that triggered the interrupt
	// forward, empty when the child exited on its own.
	ForwardedSignal string `json:"forwarded_signal,omitempty"`

	// Startup context, set once by the caller before the summary is logged.
	HostnameVerdict string `json:"hostname_verdict,omitempty"`
	ReconcileMode   string `json:"reconcile_mode,omitempty"`
}

// NewResult creates a result for a child that has exited.
func NewResult(runID string, pid int, exitCode int, startTime, endTime time.Time) *Result {
	return &Result{
		RunID:     runID,
		PID:       pid,
		ExitCode:  exitCode,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
	}
}

// SetStartup records what happened before the child was spawned.
func (r *Result) SetStartup(verdict, mode string) {
	r.HostnameVerdict = verdict
	r.ReconcileMode = mode
}

// Summary is the one-line form of the result.
func (r *Result) Summary() string {
	forwarded := r.ForwardedSignal
	if forwarded == "" {
		forwarded = "none"
	}
	return fmt.Sprintf("RUN %s | exit=%d | signaled=%t | forwarded=%s | hostname=%s | config=%s | runtime=%.0fs | pid=%d",
		r.RunID,
		r.ExitCode,
		r.Signaled,
		forwarded,
		r.HostnameVerdict,
		r.ReconcileMode,
		r.Duration.Seconds(),
		r.PID,
	)
}

// LogSummary emits the summary line through logger.
func (r *Result) LogSummary(logger *logging.Logger) {
	logger.Info(r.Summary(), logging.Fields{
		"run_id":    r.RunID,
		"exit_code": r.ExitCode,
	})
}
