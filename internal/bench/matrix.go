package bench

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/p-arndt/installbench/internal/sandbox"
	"golang.org/x/time/rate"
)

const DefaultInterRunDelay = 500 * time.Millisecond

// Plan is one matrix: a package and the tools and scenarios to run it under.
type Plan struct {
	Package   string
	Tools     []ToolSpec
	Scenarios []ScenarioSpec
}

// Driver iterates the tool x scenario matrix sequentially against the
// lifecycle's sandbox. At most one matrix runs at a time.
type Driver struct {
	lifecycle *Lifecycle
	executor  *Executor
	reporter  *Reporter
	results   *ResultSet
	delay     time.Duration

	running atomic.Bool
}

func NewDriver(lifecycle *Lifecycle, executor *Executor, reporter *Reporter, results *ResultSet, delay time.Duration) *Driver {
	return &Driver{
		lifecycle: lifecycle,
		executor:  executor,
		reporter:  reporter,
		results:   results,
		delay:     delay,
	}
}

func (d *Driver) Running() bool {
	return d.running.Load()
}

// RunMatrix runs pkg under every tool and scenario.
func (d *Driver) RunMatrix(ctx context.Context, pkg string) error {
	return d.Run(ctx, Plan{Package: pkg, Tools: DefaultTools(), Scenarios: AllScenarios()})
}

// Run executes plan to completion. It only fails to start: ErrEmptyPackage
// or ErrAlreadyRunning. Every other problem is recorded as a result.
func (d *Driver) Run(ctx context.Context, plan Plan) error {
	plan.Package = strings.TrimSpace(plan.Package)
	if plan.Package == "" {
		return ErrEmptyPackage
	}
	if len(plan.Tools) == 0 {
		plan.Tools = DefaultTools()
	}
	if len(plan.Scenarios) == 0 {
		plan.Scenarios = AllScenarios()
	}
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	total := len(plan.Tools) * len(plan.Scenarios)
	d.results.Reset()
	d.reporter.ResetProgress(ProgressState{Running: true, Total: total})
	defer d.reporter.UpdateProgress(func(p *ProgressState) {
		p.Running = false
		p.CurrentTool = ""
		p.CurrentScenario = ""
	})

	d.reporter.Info("Starting benchmark for %s: %d tools x %d scenarios", plan.Package, len(plan.Tools), len(plan.Scenarios))

	sb, err := d.lifecycle.AcquireOrBoot(ctx)
	if err != nil {
		d.reporter.Error("Sandbox unavailable: %v", err)
		d.results.Append(TestResult{Tool: BootTool, Scenario: BootScenario, Error: err.Error()})
		return nil
	}

	spacing := rate.NewLimiter(rate.Every(d.delay), 1)
	for _, tool := range plan.Tools {
		for _, sc := range plan.Scenarios {
			// A failed wait means ctx is done; runOne records the cancellation.
			_ = spacing.Wait(ctx)

			d.reporter.UpdateProgress(func(p *ProgressState) {
				p.CurrentTool = tool.Name
				p.CurrentScenario = sc.Name
			})
			d.results.Append(d.runOne(ctx, sb, tool, sc, plan.Package))
			// The next start waits out the delay from this run's end.
			spacing.Reserve()
			d.reporter.UpdateProgress(func(p *ProgressState) {
				p.Completed++
			})
		}
	}

	d.summarize()
	return nil
}

// runOne never panics: anything escaping the executor, including its own
// reporting, becomes a failed result for the pair.
func (d *Driver) runOne(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec, sc ScenarioSpec, pkg string) (res TestResult) {
	defer func() {
		if r := recover(); r != nil {
			res = TestResult{Tool: tool.Name, Scenario: sc.Name, Error: fmt.Sprint(r)}
		}
	}()
	if ctx.Err() != nil {
		return TestResult{Tool: tool.Name, Scenario: sc.Name, Error: ErrCanceled}
	}
	return d.executor.Run(ctx, sb, tool, sc, pkg)
}

func (d *Driver) summarize() {
	results := d.results.All()
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}

	for _, a := range Aggregate(results) {
		d.reporter.Info("%s: avg %.0fms, %.2fms per package", a.Tool, a.AvgDurationMs, a.AvgPerPackageTimeMs)
	}
	for _, f := range FailureSummary(results) {
		d.reporter.Warn("%s excluded from averages: %s", f.Tool, strings.Join(f.Reasons, "; "))
	}
	d.reporter.Success("Benchmark complete: %d/%d runs succeeded", ok, len(results))
}
