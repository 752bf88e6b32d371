package reaper

import (
	"context"

	"github.com/p-arndt/installbench/internal/docker"
)

// ReaperDocker abstracts docker operations needed by the reaper.
type ReaperDocker interface {
	ListSandboxContainers(ctx context.Context) ([]docker.ContainerInfo, error)
	RemoveContainer(ctx context.Context, containerID string) error
}
