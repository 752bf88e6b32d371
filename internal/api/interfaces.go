package api

import (
	"net/http"
	"time"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/session"
)

// BenchService abstracts the benchmark operations needed by API handlers.
type BenchService interface {
	Start(opts session.StartOpts) (*session.RunInfo, error)
	Current() *session.RunInfo
	Progress() bench.ProgressState
	Results() []bench.TestResult
	Logs(since int) []bench.LogEntry
	Aggregate() []bench.AggregatedResult
	FailureSummary() []bench.ToolFailures
	Chart(scenario string, metric bench.Metric) ([]bench.ChartPoint, error)
	History(limit int) ([]session.RunInfo, error)
	Get(id string) (*session.RunDetail, error)
}

// Metrics records served requests and exposes the scrape endpoint.
type Metrics interface {
	ObserveHTTP(method, path string, code int, d time.Duration)
	Handler() http.Handler
}
