package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

const (
	BackendDocker = "docker"
	BackendLocal  = "local"
)

type SandboxConfig struct {
	Backend     string  `yaml:"backend"`
	Image       string  `yaml:"image"`
	Workdir     string  `yaml:"workdir"`
	CPULimit    float64 `yaml:"cpu_limit"`
	MemLimit    string  `yaml:"mem_limit"` // go-units RAM string, e.g. "2g"
	PidsLimit   int     `yaml:"pids_limit"`
	NetworkMode string  `yaml:"network_mode"`
	LocalRoot   string  `yaml:"local_root"` // host directory for the local backend
}

type BenchConfig struct {
	RunTimeoutMs    int      `yaml:"run_timeout_ms"`
	InterRunDelayMs int      `yaml:"inter_run_delay_ms"`
	Tools           []string `yaml:"tools"`     // empty = all known tools
	Scenarios       []string `yaml:"scenarios"` // empty = all eight scenarios
}

type Config struct {
	Listen                string        `yaml:"listen"`
	APIKey                string        `yaml:"api_key"`
	DBPath                string        `yaml:"db_path"`
	ReaperIntervalSeconds int           `yaml:"reaper_interval_seconds"`
	Sandbox               SandboxConfig `yaml:"sandbox"`
	Bench                 BenchConfig   `yaml:"bench"`
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Listen:                "127.0.0.1:8090",
		DBPath:                "./installbench.db",
		ReaperIntervalSeconds: 300,
		Sandbox: SandboxConfig{
			Backend:     BackendDocker,
			Image:       "node:22-bookworm-slim",
			Workdir:     "/home/bench",
			CPULimit:    2.0,
			MemLimit:    "2g",
			PidsLimit:   512,
			NetworkMode: "bridge", // installs need the registry
		},
		Bench: BenchConfig{
			RunTimeoutMs:    60000,
			InterRunDelayMs: 500,
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// MemLimitBytes parses Sandbox.MemLimit. Empty means no limit.
func (c *Config) MemLimitBytes() (int64, error) {
	if strings.TrimSpace(c.Sandbox.MemLimit) == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(c.Sandbox.MemLimit)
	if err != nil {
		return 0, fmt.Errorf("mem_limit %q: %w", c.Sandbox.MemLimit, err)
	}
	return n, nil
}

// Validate checks values that Load cannot reject while parsing.
func (c *Config) Validate() error {
	switch c.Sandbox.Backend {
	case BackendDocker:
		if c.Sandbox.Image == "" {
			return fmt.Errorf("sandbox.image is required for the docker backend")
		}
	case BackendLocal:
	default:
		return fmt.Errorf("unknown sandbox backend %q (want docker or local)", c.Sandbox.Backend)
	}
	if c.Bench.RunTimeoutMs <= 0 {
		return fmt.Errorf("bench.run_timeout_ms must be positive, got %d", c.Bench.RunTimeoutMs)
	}
	if c.Bench.InterRunDelayMs < 0 {
		return fmt.Errorf("bench.inter_run_delay_ms must not be negative, got %d", c.Bench.InterRunDelayMs)
	}
	if _, err := c.MemLimitBytes(); err != nil {
		return err
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSTALLBENCH_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("INSTALLBENCH_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("INSTALLBENCH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("INSTALLBENCH_REAPER_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReaperIntervalSeconds = n
		}
	}
	if v := os.Getenv("INSTALLBENCH_SANDBOX_BACKEND"); v != "" {
		cfg.Sandbox.Backend = v
	}
	if v := os.Getenv("INSTALLBENCH_SANDBOX_IMAGE"); v != "" {
		cfg.Sandbox.Image = v
	}
	if v := os.Getenv("INSTALLBENCH_SANDBOX_LOCAL_ROOT"); v != "" {
		cfg.Sandbox.LocalRoot = v
	}
	if v := os.Getenv("INSTALLBENCH_CPU_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sandbox.CPULimit = f
		}
	}
	if v := os.Getenv("INSTALLBENCH_MEM_LIMIT"); v != "" {
		cfg.Sandbox.MemLimit = v
	}
	if v := os.Getenv("INSTALLBENCH_PIDS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sandbox.PidsLimit = n
		}
	}
	if v := os.Getenv("INSTALLBENCH_NETWORK_MODE"); v != "" {
		cfg.Sandbox.NetworkMode = v
	}
	if v := os.Getenv("INSTALLBENCH_RUN_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bench.RunTimeoutMs = n
		}
	}
	if v := os.Getenv("INSTALLBENCH_INTER_RUN_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bench.InterRunDelayMs = n
		}
	}
	if v := os.Getenv("INSTALLBENCH_TOOLS"); v != "" {
		cfg.Bench.Tools = splitList(v)
	}
	if v := os.Getenv("INSTALLBENCH_SCENARIOS"); v != "" {
		cfg.Bench.Scenarios = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
