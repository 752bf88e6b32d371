package session

import (
	"context"
	"time"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/store"
)

type MatrixRunner interface {
	Run(ctx context.Context, plan bench.Plan) error
	Running() bool
}

type RunStore interface {
	CreateRun(r *store.Run) error
	FinishRun(id, status, errMsg string, finishedAt time.Time) error
	SaveResults(runID string, results []bench.TestResult) error
	GetRun(id string) (*store.Run, error)
	ListRuns(limit int) ([]*store.Run, error)
	GetResults(runID string) ([]bench.TestResult, error)
}
