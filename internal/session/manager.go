// Package session runs benchmark matrices on behalf of the API and CLI and
// records each one in the history store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/store"
)

var (
	ErrNotFound       = errors.New("run not found")
	ErrInvalidRequest = errors.New("invalid request")
)

type StartOpts struct {
	Package   string   `json:"package"`
	Tools     []string `json:"tools,omitempty"`
	Scenarios []string `json:"scenarios,omitempty"`
}

type RunInfo struct {
	ID         string     `json:"id"`
	Package    string     `json:"package"`
	Tools      []string   `json:"tools"`
	Scenarios  []string   `json:"scenarios"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// LogStart is the log stream index of the run's first entry; pass it as
	// since to read only this run's log. Not kept in history.
	LogStart   int        `json:"log_start,omitempty"`
}

type RunDetail struct {
	RunInfo
	Results []bench.TestResult `json:"results"`
}

type Manager struct {
	runner   MatrixRunner
	reporter *bench.Reporter
	results  *bench.ResultSet
	// store may be nil; runs are then kept in memory only.
	store  RunStore
	logger *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active *RunInfo
	last   *RunInfo

	now   func() time.Time
	newID func() string
}

func NewManager(runner MatrixRunner, reporter *bench.Reporter, results *bench.ResultSet, st RunStore, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner:   runner,
		reporter: reporter,
		results:  results,
		store:    st,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String()[:12] },
	}
}

// Start launches a matrix in the background and returns immediately.
func (m *Manager) Start(opts StartOpts) (*RunInfo, error) {
	plan, info, err := m.begin(opts)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(m.baseCtx, info, plan)
	}()

	snapshot := *info
	return &snapshot, nil
}

// Run executes a matrix on the calling goroutine. ctx cancellation ends the
// matrix early; the remaining pairs are recorded as canceled.
func (m *Manager) Run(ctx context.Context, opts StartOpts) (*RunDetail, error) {
	plan, info, err := m.begin(opts)
	if err != nil {
		return nil, err
	}
	m.execute(ctx, info, plan)

	m.mu.Lock()
	detail := &RunDetail{RunInfo: *m.last, Results: m.results.All()}
	m.mu.Unlock()
	return detail, nil
}

// Shutdown cancels a background matrix and waits for it to be recorded.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for matrix: %w", ctx.Err())
	}
}

func (m *Manager) begin(opts StartOpts) (bench.Plan, *RunInfo, error) {
	plan, err := resolvePlan(opts)
	if err != nil {
		return bench.Plan{}, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil || m.runner.Running() {
		return bench.Plan{}, nil, bench.ErrAlreadyRunning
	}

	info := &RunInfo{
		ID:        m.newID(),
		Package:   plan.Package,
		Tools:     toolNames(plan.Tools),
		Scenarios: scenarioNames(plan.Scenarios),
		Status:    store.StatusRunning,
		StartedAt: m.now(),
		LogStart:  m.reporter.LogCount(),
	}
	m.active = info

	if m.store != nil {
		if err := m.store.CreateRun(toStoreRun(info)); err != nil {
			m.logger.Warn("record run start", "run_id", info.ID, "error", err)
		}
	}
	m.logger.Info("benchmark started", "run_id", info.ID, "package", info.Package,
		"tools", len(plan.Tools), "scenarios", len(plan.Scenarios))
	return plan, info, nil
}

// runMatrix keeps a panicking runner from taking the process down; the run
// is then recorded as failed.
func (m *Manager) runMatrix(ctx context.Context, plan bench.Plan) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("matrix panicked", "error", r)
			err = fmt.Errorf("matrix panicked: %v", r)
		}
	}()
	return m.runner.Run(ctx, plan)
}

func (m *Manager) execute(ctx context.Context, info *RunInfo, plan bench.Plan) {
	err := m.runMatrix(ctx, plan)
	results := m.results.All()

	status := store.StatusCompleted
	errMsg := ""
	switch {
	case err != nil:
		status = store.StatusFailed
		errMsg = err.Error()
	case ctx.Err() != nil:
		status = store.StatusInterrupted
	case len(results) == 1 && results[0].Tool == bench.BootTool:
		status = store.StatusFailed
		errMsg = results[0].Error
	}
	finished := m.now()

	if m.store != nil {
		if err := m.store.SaveResults(info.ID, results); err != nil {
			m.logger.Error("save results", "run_id", info.ID, "error", err)
		}
		if err := m.store.FinishRun(info.ID, status, errMsg, finished); err != nil {
			m.logger.Error("record run end", "run_id", info.ID, "error", err)
		}
	}

	m.mu.Lock()
	info.Status = status
	info.Error = errMsg
	info.FinishedAt = &finished
	m.last = info
	m.active = nil
	m.mu.Unlock()

	m.logger.Info("benchmark finished", "run_id", info.ID, "status", status,
		"results", len(results), "duration", finished.Sub(info.StartedAt))
}

func resolvePlan(opts StartOpts) (bench.Plan, error) {
	pkg := strings.TrimSpace(opts.Package)
	if pkg == "" {
		return bench.Plan{}, bench.ErrEmptyPackage
	}
	tools, err := bench.SelectTools(opts.Tools)
	if err != nil {
		return bench.Plan{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	scenarios, err := bench.SelectScenarios(opts.Scenarios)
	if err != nil {
		return bench.Plan{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return bench.Plan{Package: pkg, Tools: tools, Scenarios: scenarios}, nil
}

func toolNames(tools []bench.ToolSpec) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = t.Name
	}
	return out
}

func scenarioNames(scenarios []bench.ScenarioSpec) []string {
	out := make([]string, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.Name
	}
	return out
}

func toStoreRun(info *RunInfo) *store.Run {
	return &store.Run{
		ID:         info.ID,
		Package:    info.Package,
		Tools:      info.Tools,
		Scenarios:  info.Scenarios,
		Status:     info.Status,
		Error:      info.Error,
		StartedAt:  info.StartedAt,
		FinishedAt: info.FinishedAt,
	}
}

func fromStoreRun(r *store.Run) RunInfo {
	return RunInfo{
		ID:         r.ID,
		Package:    r.Package,
		Tools:      r.Tools,
		Scenarios:  r.Scenarios,
		Status:     r.Status,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
