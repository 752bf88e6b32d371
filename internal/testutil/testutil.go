package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/config"
	"github.com/p-arndt/installbench/internal/store"
)

// TestConfig returns a Config with sensible test defaults.
func TestConfig() *config.Config {
	return &config.Config{
		Listen:                "127.0.0.1:0",
		APIKey:                "test-api-key",
		DBPath:                ":memory:",
		ReaperIntervalSeconds: 60,
		Sandbox: config.SandboxConfig{
			Backend:     config.BackendLocal,
			Image:       "node:22-bookworm-slim",
			Workdir:     "/home/bench",
			CPULimit:    1.0,
			MemLimit:    "512m",
			PidsLimit:   256,
			NetworkMode: "none",
		},
		Bench: config.BenchConfig{
			RunTimeoutMs:    1000,
			InterRunDelayMs: 0,
		},
	}
}

// TestResult builds a successful result for tool and scenario.
func TestResult(tool, scenario string, durationMs int64, packages int) bench.TestResult {
	r := bench.TestResult{
		Tool:         tool,
		Scenario:     scenario,
		DurationMs:   durationMs,
		Success:      true,
		PackageCount: packages,
		Version:      "1.0.0",
	}
	if packages > 0 {
		r.PerPackageTimeMs = float64(durationMs) / float64(packages)
	}
	return r
}

// TestRun returns a finished run record.
func TestRun(id, pkg string) *store.Run {
	started := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	finished := started.Add(30 * time.Second)
	return &store.Run{
		ID:         id,
		Package:    pkg,
		Tools:      []string{"npm", "pnpm"},
		Scenarios:  []string{"clean"},
		Status:     store.StatusCompleted,
		StartedAt:  started,
		FinishedAt: &finished,
	}
}

// NewTestStore creates a SQLite store in a temp directory for testing.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), 1)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}
