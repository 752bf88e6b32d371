package reaper

import (
	"context"

	"github.com/p-arndt/installbench/internal/docker"
	"github.com/stretchr/testify/mock"
)

// MockReaperDocker mocks the ReaperDocker interface.
type MockReaperDocker struct {
	mock.Mock
}

func (m *MockReaperDocker) RemoveContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

func (m *MockReaperDocker) ListSandboxContainers(ctx context.Context) ([]docker.ContainerInfo, error) {
	args := m.Called(ctx)
	if containers := args.Get(0); containers != nil {
		return containers.([]docker.ContainerInfo), args.Error(1)
	}
	return nil, args.Error(1)
}
