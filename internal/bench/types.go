// Package bench runs the package-manager install benchmark: every tool under
// every filesystem scenario, sequentially, in one shared sandbox.
package bench

import (
	"errors"
	"time"
)

var (
	ErrEmptyPackage    = errors.New("package name is required")
	ErrAlreadyRunning  = errors.New("a benchmark matrix is already running")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrUnknownScenario = errors.New("unknown scenario")
)

// BootTool and BootScenario label the single result recorded when the
// sandbox cannot be booted.
const (
	BootTool     = "sandbox"
	BootScenario = "boot"
)

// TestResult is the outcome of one (tool, scenario) run. It is immutable
// once appended to a ResultSet.
type TestResult struct {
	Tool             string  `json:"tool"`
	Scenario         string  `json:"scenario"`
	DurationMs       int64   `json:"durationMs"`
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
	PackageCount     int     `json:"packageCount,omitempty"`
	PerPackageTimeMs float64 `json:"perPackageTimeMs,omitempty"`
	Version          string  `json:"version,omitempty"`
}

// ProgressState is the live snapshot polled by the UI.
type ProgressState struct {
	Running           bool   `json:"running"`
	CurrentTool       string `json:"currentTool,omitempty"`
	CurrentScenario   string `json:"currentScenario,omitempty"`
	Completed         int    `json:"completed"`
	Total             int    `json:"total"`
	InstallingTools   bool   `json:"installingTools,omitempty"`
	InstallProgress   int    `json:"installProgress,omitempty"`
	InstallTotal      int    `json:"installTotal,omitempty"`
	CurrentInstalling string `json:"currentInstalling,omitempty"`
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}
