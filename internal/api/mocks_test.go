package api

import (
	"net/http"
	"time"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/session"
	"github.com/stretchr/testify/mock"
)

type MockBenchService struct {
	mock.Mock
}

func (m *MockBenchService) Start(opts session.StartOpts) (*session.RunInfo, error) {
	args := m.Called(opts)
	if info := args.Get(0); info != nil {
		return info.(*session.RunInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBenchService) Current() *session.RunInfo {
	args := m.Called()
	if info := args.Get(0); info != nil {
		return info.(*session.RunInfo)
	}
	return nil
}

func (m *MockBenchService) Progress() bench.ProgressState {
	args := m.Called()
	return args.Get(0).(bench.ProgressState)
}

func (m *MockBenchService) Results() []bench.TestResult {
	args := m.Called()
	if r := args.Get(0); r != nil {
		return r.([]bench.TestResult)
	}
	return nil
}

func (m *MockBenchService) Logs(since int) []bench.LogEntry {
	args := m.Called(since)
	if r := args.Get(0); r != nil {
		return r.([]bench.LogEntry)
	}
	return nil
}

func (m *MockBenchService) Aggregate() []bench.AggregatedResult {
	args := m.Called()
	if r := args.Get(0); r != nil {
		return r.([]bench.AggregatedResult)
	}
	return nil
}

func (m *MockBenchService) FailureSummary() []bench.ToolFailures {
	args := m.Called()
	if r := args.Get(0); r != nil {
		return r.([]bench.ToolFailures)
	}
	return nil
}

func (m *MockBenchService) Chart(scenario string, metric bench.Metric) ([]bench.ChartPoint, error) {
	args := m.Called(scenario, metric)
	if r := args.Get(0); r != nil {
		return r.([]bench.ChartPoint), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBenchService) History(limit int) ([]session.RunInfo, error) {
	args := m.Called(limit)
	if r := args.Get(0); r != nil {
		return r.([]session.RunInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBenchService) Get(id string) (*session.RunDetail, error) {
	args := m.Called(id)
	if r := args.Get(0); r != nil {
		return r.(*session.RunDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) ObserveHTTP(method, path string, code int, d time.Duration) {
	m.Called(method, path, code, d)
}

func (m *MockMetrics) Handler() http.Handler {
	args := m.Called()
	return args.Get(0).(http.Handler)
}
