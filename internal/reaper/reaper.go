package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/p-arndt/installbench/internal/docker"
)

// Reaper removes benchmark containers left behind by earlier processes.
// It never touches containers this process owns, containers created after
// it started, or running containers owned by another process.
type Reaper struct {
	docker   ReaperDocker
	owner    string
	live     func() string
	interval time.Duration
	started  time.Time
	logger   *slog.Logger
}

// New returns a reaper for the process identified by owner. live reports
// the container currently in use, if any.
func New(d ReaperDocker, owner string, live func() string, interval time.Duration, logger *slog.Logger) *Reaper {
	if live == nil {
		live = func() string { return "" }
	}
	return &Reaper{
		docker:   d,
		owner:    owner,
		live:     live,
		interval: interval,
		started:  time.Now(),
		logger:   logger,
	}
}

func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("reaper started", "interval", r.interval)

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep returns the number of containers removed.
func (r *Reaper) sweep(ctx context.Context) int {
	containers, err := r.docker.ListSandboxContainers(ctx)
	if err != nil {
		r.logger.Error("reaper: list containers", "error", err)
		return 0
	}

	live := r.live()
	removed := 0
	for _, c := range containers {
		if !r.orphaned(c, live) {
			continue
		}
		r.logger.Info("removing orphaned container", "container", c.Name, "created_at", c.CreatedAt)
		if err := r.docker.RemoveContainer(ctx, c.ContainerID); err != nil {
			r.logger.Error("reaper: remove container", "container", c.Name, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		r.logger.Info("reaper: removed containers", "count", removed)
	}
	return removed
}

func (r *Reaper) orphaned(c docker.ContainerInfo, live string) bool {
	switch {
	case c.ContainerID == live:
		return false
	case r.owner != "" && c.Owner == r.owner:
		return false
	case !c.CreatedAt.Before(r.started):
		return false
	case c.Owner != "" && c.Running:
		// Another process may be mid-matrix in it.
		return false
	}
	return true
}
