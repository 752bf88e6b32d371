package sandbox

import (
	"context"

	"github.com/p-arndt/installbench/internal/docker"
	"github.com/stretchr/testify/mock"
)

type MockContainerClient struct {
	mock.Mock
}

func (m *MockContainerClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockContainerClient) EnsureImage(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockContainerClient) CreateContainer(ctx context.Context, opts docker.CreateOpts) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *MockContainerClient) Exec(ctx context.Context, containerID string, opts docker.ExecOpts) (*docker.ExecOutput, error) {
	args := m.Called(ctx, containerID, opts)
	if out := args.Get(0); out != nil {
		return out.(*docker.ExecOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContainerClient) RemoveContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}
