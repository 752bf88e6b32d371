package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8090", cfg.Listen)
	assert.Equal(t, "./installbench.db", cfg.DBPath)
	assert.Equal(t, 300, cfg.ReaperIntervalSeconds)
	assert.Equal(t, BackendDocker, cfg.Sandbox.Backend)
	assert.Equal(t, "node:22-bookworm-slim", cfg.Sandbox.Image)
	assert.Equal(t, "/home/bench", cfg.Sandbox.Workdir)
	assert.Equal(t, 2.0, cfg.Sandbox.CPULimit)
	assert.Equal(t, "2g", cfg.Sandbox.MemLimit)
	assert.Equal(t, 512, cfg.Sandbox.PidsLimit)
	assert.Equal(t, 60000, cfg.Bench.RunTimeoutMs)
	assert.Equal(t, 500, cfg.Bench.InterRunDelayMs)
	assert.Empty(t, cfg.Bench.Tools)
	assert.Empty(t, cfg.Bench.Scenarios)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	yamlContent := `
listen: "0.0.0.0:9090"
api_key: "sk-test"
sandbox:
  image: "node:20"
  mem_limit: "512m"
bench:
  run_timeout_ms: 30000
  tools: [npm, pnpm]
  scenarios: [clean, cache+lockfile]
`
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "test.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlContent), 0644))

	cfg, err := Load(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Listen)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "node:20", cfg.Sandbox.Image)
	assert.Equal(t, 30000, cfg.Bench.RunTimeoutMs)
	assert.Equal(t, []string{"npm", "pnpm"}, cfg.Bench.Tools)
	assert.Equal(t, []string{"clean", "cache+lockfile"}, cfg.Bench.Scenarios)
	// untouched keys keep their defaults
	assert.Equal(t, "/home/bench", cfg.Sandbox.Workdir)

	n, err := cfg.MemLimitBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024*1024), n)
}

func TestLoadYAMLMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8090", cfg.Listen)
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("{{{{invalid yaml"), 0644))

	_, err := Load(yamlPath)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INSTALLBENCH_LISTEN", "0.0.0.0:7777")
	t.Setenv("INSTALLBENCH_API_KEY", "env-key")
	t.Setenv("INSTALLBENCH_DB_PATH", "/tmp/bench.db")
	t.Setenv("INSTALLBENCH_SANDBOX_BACKEND", "local")
	t.Setenv("INSTALLBENCH_SANDBOX_LOCAL_ROOT", "/tmp/sb")
	t.Setenv("INSTALLBENCH_CPU_LIMIT", "0.5")
	t.Setenv("INSTALLBENCH_MEM_LIMIT", "1g")
	t.Setenv("INSTALLBENCH_PIDS_LIMIT", "128")
	t.Setenv("INSTALLBENCH_RUN_TIMEOUT_MS", "1000")
	t.Setenv("INSTALLBENCH_INTER_RUN_DELAY_MS", "0")
	t.Setenv("INSTALLBENCH_TOOLS", "npm, bun")
	t.Setenv("INSTALLBENCH_SCENARIOS", "clean")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7777", cfg.Listen)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "/tmp/bench.db", cfg.DBPath)
	assert.Equal(t, BackendLocal, cfg.Sandbox.Backend)
	assert.Equal(t, "/tmp/sb", cfg.Sandbox.LocalRoot)
	assert.Equal(t, 0.5, cfg.Sandbox.CPULimit)
	assert.Equal(t, "1g", cfg.Sandbox.MemLimit)
	assert.Equal(t, 128, cfg.Sandbox.PidsLimit)
	assert.Equal(t, 1000, cfg.Bench.RunTimeoutMs)
	assert.Equal(t, 0, cfg.Bench.InterRunDelayMs)
	assert.Equal(t, []string{"npm", "bun"}, cfg.Bench.Tools)
	assert.Equal(t, []string{"clean"}, cfg.Bench.Scenarios)
}

func TestEnvOverrideInvalidValues(t *testing.T) {
	t.Setenv("INSTALLBENCH_RUN_TIMEOUT_MS", "not-a-number")
	t.Setenv("INSTALLBENCH_CPU_LIMIT", "not-a-float")

	cfg, err := Load("")
	require.NoError(t, err)

	// Invalid values are ignored, keeping defaults
	assert.Equal(t, 60000, cfg.Bench.RunTimeoutMs)
	assert.Equal(t, 2.0, cfg.Sandbox.CPULimit)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Sandbox.Backend = "firecracker" }, "unknown sandbox backend"},
		{"docker without image", func(c *Config) { c.Sandbox.Image = "" }, "sandbox.image"},
		{"zero timeout", func(c *Config) { c.Bench.RunTimeoutMs = 0 }, "run_timeout_ms"},
		{"negative delay", func(c *Config) { c.Bench.InterRunDelayMs = -1 }, "inter_run_delay_ms"},
		{"bad mem limit", func(c *Config) { c.Sandbox.MemLimit = "lots" }, "mem_limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
