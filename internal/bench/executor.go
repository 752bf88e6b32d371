package bench

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/p-arndt/installbench/internal/sandbox"
)

const (
	DefaultRunTimeout = 60 * time.Second

	// ErrTimeout is the error text of a run that hit the deadline.
	ErrTimeout = "timeout"
	// ErrCanceled is the error text of a run stopped by cancellation.
	ErrCanceled = "canceled"

	excerptLen     = 200
	versionTimeout = 15 * time.Second
	// DefaultReapTimeout bounds the wait for a timed-out command to be killed.
	// It covers the container backend's own kill exec.
	DefaultReapTimeout = 15 * time.Second
)

// Executor performs one (tool, scenario) run. It never returns an error:
// every failure, including a panic, becomes a failed TestResult.
type Executor struct {
	preparer *Preparer
	counter  *Counter
	reporter *Reporter
	metrics  Recorder
	timeout  time.Duration
	// reap bounds how long Run blocks on a timed-out exec. The sandbox is
	// not touched again until the exec returns or reap expires.
	reap time.Duration
	now  func() time.Time
}

func NewExecutor(preparer *Preparer, counter *Counter, reporter *Reporter, metrics Recorder, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Executor{
		preparer: preparer,
		counter:  counter,
		reporter: reporter,
		metrics:  recorderOrNop(metrics),
		timeout:  timeout,
		reap:     DefaultReapTimeout,
		now:      time.Now,
	}
}

type execOutcome struct {
	res *sandbox.ExecResult
	err error
}

func (e *Executor) Run(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec, sc ScenarioSpec, pkg string) (result TestResult) {
	start := e.now()
	result = TestResult{Tool: tool.Name, Scenario: sc.Name}

	defer func() {
		if r := recover(); r != nil {
			result = TestResult{
				Tool:       tool.Name,
				Scenario:   sc.Name,
				DurationMs: e.now().Sub(start).Milliseconds(),
				Error:      fmt.Sprint(r),
			}
		}
		if result.Success {
			e.reporter.Success("%s %s: %dms, %d packages", tool.Name, sc.Name, result.DurationMs, result.PackageCount)
		} else {
			e.reporter.Error("%s %s failed: %s", tool.Name, sc.Name, result.Error)
		}
		e.metrics.ObserveRun(result)
	}()

	e.reporter.Info("Testing %s with %s scenario...", tool.Name, sc.Name)
	e.preparer.Prepare(ctx, sb, tool, sc, pkg)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execOutcome{err: fmt.Errorf("exec panicked: %v", r)}
			}
		}()
		res, err := sb.Exec(runCtx, tool.RunCommand())
		done <- execOutcome{res: res, err: err}
	}()

	var out execOutcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		result.DurationMs = e.now().Sub(start).Milliseconds()
		result.Error = e.deadlineReason(ctx)
		e.awaitExec(done, tool, sc)
		return result
	}
	result.DurationMs = e.now().Sub(start).Milliseconds()

	switch {
	case out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil:
		result.Error = ErrTimeout
		return result
	case out.err != nil && ctx.Err() != nil:
		result.Error = ErrCanceled
		return result
	case out.err != nil:
		result.Error = out.err.Error()
		return result
	case out.res.ExitCode != 0:
		result.Error = exitError(out.res)
		return result
	}

	result.Success = true
	result.Version = e.version(ctx, sb, tool)
	result.PackageCount = e.counter.Count(ctx, sb, tool)
	if result.PackageCount > 0 {
		result.PerPackageTimeMs = float64(result.DurationMs) / float64(result.PackageCount)
	}
	return result
}

// awaitExec blocks until a cancelled exec has returned so that the next
// operation on the sandbox never overlaps it.
func (e *Executor) awaitExec(done <-chan execOutcome, tool ToolSpec, sc ScenarioSpec) {
	timer := time.NewTimer(e.reap)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		e.reporter.Warn("%s %s: command still running %s after the deadline", tool.Name, sc.Name, e.reap)
	}
}

func (e *Executor) deadlineReason(parent context.Context) string {
	if parent.Err() != nil {
		return ErrCanceled
	}
	return ErrTimeout
}

func exitError(res *sandbox.ExecResult) string {
	msg := fmt.Sprintf("Exit code: %d", res.ExitCode)
	if excerpt := Truncate(strings.TrimSpace(res.Output), excerptLen); excerpt != "" {
		msg += ": " + excerpt
	}
	return msg
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (e *Executor) version(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec) string {
	if tool.VersionCmd == "" {
		return "unknown"
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	res, err := sb.Exec(ctx, tool.VersionCmd)
	if err != nil || res.ExitCode != 0 {
		return "unknown"
	}
	return firstLine(res.Output)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
