package session

import (
	"context"
	"time"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockMatrixRunner struct {
	mock.Mock
}

func (m *MockMatrixRunner) Run(ctx context.Context, plan bench.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockMatrixRunner) Running() bool {
	args := m.Called()
	return args.Bool(0)
}

type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) CreateRun(r *store.Run) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockRunStore) FinishRun(id, status, errMsg string, finishedAt time.Time) error {
	args := m.Called(id, status, errMsg, finishedAt)
	return args.Error(0)
}

func (m *MockRunStore) SaveResults(runID string, results []bench.TestResult) error {
	args := m.Called(runID, results)
	return args.Error(0)
}

func (m *MockRunStore) GetRun(id string) (*store.Run, error) {
	args := m.Called(id)
	if r := args.Get(0); r != nil {
		return r.(*store.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunStore) ListRuns(limit int) ([]*store.Run, error) {
	args := m.Called(limit)
	if r := args.Get(0); r != nil {
		return r.([]*store.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunStore) GetResults(runID string) ([]bench.TestResult, error) {
	args := m.Called(runID)
	if r := args.Get(0); r != nil {
		return r.([]bench.TestResult), args.Error(1)
	}
	return nil, args.Error(1)
}
