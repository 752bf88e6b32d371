package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultToolsOrder(t *testing.T) {
	var names []string
	for _, tool := range DefaultTools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"npm", "pnpm", "yarn", "bun"}, names)
}

func TestDefaultToolsReturnsCopy(t *testing.T) {
	tools := DefaultTools()
	tools[0].Name = "changed"
	assert.Equal(t, "npm", DefaultTools()[0].Name)
}

func TestRunCommand(t *testing.T) {
	npm, ok := LookupTool("npm")
	require.True(t, ok)
	assert.Equal(t, "npm cache clean --force >/dev/null 2>&1; npm install --no-audit --no-fund --loglevel=error", npm.RunCommand())

	custom, ok := LookupTool("deno")
	assert.False(t, ok)
	assert.Equal(t, "deno", custom.Name)
	assert.Equal(t, fallbackInstallCmd, custom.RunCommand())

	assert.Equal(t, "x install", ToolSpec{InstallCmd: "x install"}.RunCommand())
}

func TestVerifyFlags(t *testing.T) {
	verified := map[string]bool{}
	for _, tool := range DefaultTools() {
		verified[tool.Name] = tool.Verify
	}
	assert.Equal(t, map[string]bool{"npm": false, "pnpm": true, "yarn": true, "bun": true}, verified)
}

func TestSelectTools(t *testing.T) {
	all, err := SelectTools(nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	picked, err := SelectTools([]string{"bun", "npm"})
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Equal(t, "bun", picked[0].Name)
	assert.Equal(t, "npm", picked[1].Name)

	_, err = SelectTools([]string{"npm", "deno"})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestScenarios(t *testing.T) {
	var names []string
	for _, s := range AllScenarios() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"clean",
		"cache",
		"lockfile",
		"node_modules",
		"cache+lockfile",
		"cache+node_modules",
		"lockfile+node_modules",
		"cache+lockfile+node_modules",
	}, names)

	s, ok := LookupScenario("cache+node_modules")
	require.True(t, ok)
	assert.Equal(t, ScenarioSpec{Name: "cache+node_modules", HasCache: true, HasNodeModules: true}, s)

	_, err := SelectScenarios([]string{"clean", "warm"})
	assert.ErrorIs(t, err, ErrUnknownScenario)

	picked, err := SelectScenarios([]string{"lockfile", "clean"})
	require.NoError(t, err)
	assert.Equal(t, "lockfile", picked[0].Name)
}
