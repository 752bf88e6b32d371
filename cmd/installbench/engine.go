package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/config"
	"github.com/p-arndt/installbench/internal/docker"
	"github.com/p-arndt/installbench/internal/metrics"
	"github.com/p-arndt/installbench/internal/sandbox"
	"github.com/p-arndt/installbench/internal/session"
	"github.com/p-arndt/installbench/internal/store"
)

// engine holds the wired benchmark components for one process.
type engine struct {
	cfg    *config.Config
	logger *slog.Logger
	// owner labels this process's containers for every sweeper.
	owner  string

	docker    *docker.Client // nil for the local backend
	store     *store.Store   // nil when history is disabled
	metrics   *metrics.Collector
	reporter  *bench.Reporter
	results   *bench.ResultSet
	lifecycle *bench.Lifecycle
	manager   *session.Manager
}

type engineOpts struct {
	history bool
}

func loadConfig(backend string) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if backend != "" {
		cfg.Sandbox.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newEngine(cfg *config.Config, logger *slog.Logger, opts engineOpts) (*engine, error) {
	e := &engine{
		cfg:      cfg,
		logger:   logger,
		owner:    uuid.New().String(),
		metrics:  metrics.New(),
		reporter: bench.NewReporter(logger),
		results:  bench.NewResultSet(),
	}

	tools, err := bench.SelectTools(cfg.Bench.Tools)
	if err != nil {
		return nil, fmt.Errorf("bench.tools: %w", err)
	}
	if _, err := bench.SelectScenarios(cfg.Bench.Scenarios); err != nil {
		return nil, fmt.Errorf("bench.scenarios: %w", err)
	}

	booter, err := e.booter()
	if err != nil {
		e.close()
		return nil, err
	}

	e.lifecycle = bench.NewLifecycle(booter, tools, e.reporter, e.metrics)
	executor := bench.NewExecutor(
		bench.NewPreparer(e.reporter),
		bench.NewCounter(logger),
		e.reporter,
		e.metrics,
		time.Duration(cfg.Bench.RunTimeoutMs)*time.Millisecond,
	)
	driver := bench.NewDriver(e.lifecycle, executor, e.reporter, e.results,
		time.Duration(cfg.Bench.InterRunDelayMs)*time.Millisecond)

	var runStore session.RunStore
	if opts.history {
		st, err := store.New(cfg.DBPath, 1)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		e.store = st
		runStore = st
	}

	e.manager = session.NewManager(driver, e.reporter, e.results, runStore, logger)
	return e, nil
}

func (e *engine) booter() (sandbox.Booter, error) {
	switch e.cfg.Sandbox.Backend {
	case config.BackendLocal:
		return sandbox.NewLocalBooter(e.cfg.Sandbox.LocalRoot, e.logger), nil
	case config.BackendDocker:
		mem, err := e.cfg.MemLimitBytes()
		if err != nil {
			return nil, err
		}
		dc, err := docker.New()
		if err != nil {
			return nil, fmt.Errorf("docker client: %w", err)
		}
		e.docker = dc
		return sandbox.NewDockerBooter(dc, sandbox.ContainerOpts{
			Image:       e.cfg.Sandbox.Image,
			Workdir:     e.cfg.Sandbox.Workdir,
			CPULimit:    e.cfg.Sandbox.CPULimit,
			MemoryBytes: mem,
			PidsLimit:   e.cfg.Sandbox.PidsLimit,
			NetworkMode: e.cfg.Sandbox.NetworkMode,
			Owner:       e.owner,
		}, e.logger), nil
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", e.cfg.Sandbox.Backend)
	}
}

// liveContainer reports the id of the container the lifecycle holds, if any.
func (e *engine) liveContainer() string {
	if c, ok := e.lifecycle.Current().(*sandbox.Container); ok {
		return c.ID()
	}
	return ""
}

// shutdown stops a background matrix, tears down the sandbox and releases
// clients. It is safe to call on a partially built engine.
func (e *engine) shutdown(ctx context.Context) {
	if e.manager != nil {
		if err := e.manager.Shutdown(ctx); err != nil {
			e.logger.Warn("matrix shutdown", "error", err)
		}
	}
	if e.lifecycle != nil {
		if err := e.lifecycle.Close(ctx); err != nil {
			e.logger.Warn("sandbox teardown", "error", err)
		}
	}
	e.close()
}

func (e *engine) close() {
	if e.store != nil {
		e.store.Close()
		e.store = nil
	}
	if e.docker != nil {
		e.docker.Close()
		e.docker = nil
	}
}
