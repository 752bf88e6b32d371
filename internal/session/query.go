package session

import (
	"errors"
	"fmt"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/store"
)

func (m *Manager) Progress() bench.ProgressState {
	return m.reporter.Progress()
}

func (m *Manager) Results() []bench.TestResult {
	return m.results.All()
}

func (m *Manager) Logs(since int) []bench.LogEntry {
	return m.reporter.Logs(since)
}

func (m *Manager) Aggregate() []bench.AggregatedResult {
	return bench.Aggregate(m.results.All())
}

func (m *Manager) FailureSummary() []bench.ToolFailures {
	return bench.FailureSummary(m.results.All())
}

// Chart projects the current results. scenario is a scenario name or
// "average"; metric is "total" or "perPackage".
func (m *Manager) Chart(scenario string, metric bench.Metric) ([]bench.ChartPoint, error) {
	if scenario == "" {
		scenario = bench.ScenarioAverage
	}
	if metric == "" {
		metric = bench.MetricTotal
	}
	if _, ok := bench.LookupScenario(scenario); !ok && scenario != bench.ScenarioAverage {
		return nil, fmt.Errorf("%w: unknown scenario %q", ErrInvalidRequest, scenario)
	}
	if metric != bench.MetricTotal && metric != bench.MetricPerPackage {
		return nil, fmt.Errorf("%w: unknown metric %q", ErrInvalidRequest, metric)
	}
	return bench.Chart(m.results.All(), scenario, metric), nil
}

// Current returns the running matrix, else the last finished one, else nil.
func (m *Manager) Current() *RunInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.active != nil:
		info := *m.active
		return &info
	case m.last != nil:
		info := *m.last
		return &info
	}
	return nil
}

// History lists recorded runs, newest first.
func (m *Manager) History(limit int) ([]RunInfo, error) {
	if m.store == nil {
		if cur := m.Current(); cur != nil {
			return []RunInfo{*cur}, nil
		}
		return []RunInfo{}, nil
	}
	runs, err := m.store.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunInfo, len(runs))
	for i, r := range runs {
		out[i] = fromStoreRun(r)
	}
	return out, nil
}

// Get returns a run with its results. The live run is served from memory.
func (m *Manager) Get(id string) (*RunDetail, error) {
	if cur := m.Current(); cur != nil && cur.ID == id {
		return &RunDetail{RunInfo: *cur, Results: m.results.All()}, nil
	}
	if m.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	run, err := m.store.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	results, err := m.store.GetResults(id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{RunInfo: fromStoreRun(run), Results: results}, nil
}
