package bench

import "fmt"

// ToolSpec describes one package manager under test.
type ToolSpec struct {
	Name string
	// SetupCmd installs the tool into a fresh sandbox. Empty means the
	// sandbox image already ships it.
	SetupCmd      string
	VersionCmd    string
	CacheCleanCmd string
	InstallCmd    string
	// ListCmd prints the installed dependency tree as JSON. Empty when the
	// tool has no machine-readable listing.
	ListCmd  string
	Lockfile string
	// Verify marks tools whose version is checked after setup.
	Verify bool
}

// fallbackInstallCmd is used for tools without an install command of their own.
const fallbackInstallCmd = "npm install --no-audit --no-fund"

// RunCommand is the measured command: clear the tool's cache, then install.
// A failing cache clean does not fail the install.
func (t ToolSpec) RunCommand() string {
	install := t.InstallCmd
	if install == "" {
		return fallbackInstallCmd
	}
	if t.CacheCleanCmd == "" {
		return install
	}
	return t.CacheCleanCmd + " >/dev/null 2>&1; " + install
}

var defaultTools = []ToolSpec{
	{
		Name:          "npm",
		VersionCmd:    "npm --version",
		CacheCleanCmd: "npm cache clean --force",
		InstallCmd:    "npm install --no-audit --no-fund --loglevel=error",
		ListCmd:       "npm ls --all --json",
		Lockfile:      "package-lock.json",
	},
	{
		Name:          "pnpm",
		SetupCmd:      "npm install -g pnpm --no-audit --no-fund",
		VersionCmd:    "pnpm --version",
		CacheCleanCmd: "pnpm store prune",
		// CI=true would otherwise force a frozen lockfile.
		InstallCmd: "pnpm install --no-frozen-lockfile --reporter=append-only",
		ListCmd:    "pnpm list --depth Infinity --json",
		Lockfile:   "pnpm-lock.yaml",
		Verify:     true,
	},
	{
		Name:          "yarn",
		SetupCmd:      "npm install -g yarn --no-audit --no-fund",
		VersionCmd:    "yarn --version",
		CacheCleanCmd: "yarn cache clean",
		InstallCmd:    "yarn install --non-interactive --no-progress",
		Lockfile:      "yarn.lock",
		Verify:        true,
	},
	{
		Name:          "bun",
		SetupCmd:      "npm install -g bun --no-audit --no-fund",
		VersionCmd:    "bun --version",
		CacheCleanCmd: "bun pm cache rm",
		InstallCmd:    "bun install --no-progress",
		Lockfile:      "bun.lockb",
		Verify:        true,
	},
}

// DefaultTools returns the benchmarked tools in matrix order.
func DefaultTools() []ToolSpec {
	return append([]ToolSpec(nil), defaultTools...)
}

// LookupTool returns the known spec for name. Unknown names get a bare spec
// that installs through the fallback command.
func LookupTool(name string) (ToolSpec, bool) {
	for _, t := range defaultTools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolSpec{Name: name, VersionCmd: name + " --version"}, false
}

// SelectTools resolves names in the given order; empty means all tools.
func SelectTools(names []string) ([]ToolSpec, error) {
	if len(names) == 0 {
		return DefaultTools(), nil
	}
	out := make([]ToolSpec, 0, len(names))
	for _, n := range names {
		t, ok := LookupTool(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, n)
		}
		out = append(out, t)
	}
	return out, nil
}
