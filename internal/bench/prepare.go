package bench

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/p-arndt/installbench/internal/sandbox"
	"gopkg.in/yaml.v3"
)

const (
	ModulesDir   = "node_modules"
	ManifestFile = "package.json"
	// ModulesMarker is written into a pre-seeded modules directory so the
	// tool sees a non-empty existing tree.
	ModulesMarker = "node_modules/.installbench"

	manifestName = "installbench-target"
)

// workdirAllowList names the working-directory entries that survive the reset.
// They hold the shell profile and the globally installed tools.
var workdirAllowList = map[string]bool{
	".bashrc":          true,
	".profile":         true,
	".config":          true,
	".npm-global":      true,
	".npmrc":           true,
	sandbox.RootMarker: true,
}

// CacheDirs are the package-manager cache locations relative to HOME.
var CacheDirs = []string{
	".npm",
	".cache/yarn",
	".yarn/berry/cache",
	".local/share/pnpm/store",
	".cache/pnpm",
	".bun/install/cache",
}

// Preparer rebuilds the filesystem state a scenario demands. Failures of
// individual steps are reported as warnings and never abort the run.
type Preparer struct {
	reporter *Reporter
}

func NewPreparer(reporter *Reporter) *Preparer {
	return &Preparer{reporter: reporter}
}

func (p *Preparer) Prepare(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec, sc ScenarioSpec, pkg string) {
	p.resetWorkdir(ctx, sb)

	for _, dir := range CacheDirs {
		if err := sb.RemoveAll(ctx, dir); err != nil {
			p.reporter.Warn("clear cache %s: %v", dir, err)
		}
	}

	manifest, err := Manifest(pkg)
	if err != nil {
		p.reporter.Warn("render manifest: %v", err)
	} else if err := sb.WriteFile(ctx, ManifestFile, manifest); err != nil {
		p.reporter.Warn("write manifest: %v", err)
	}

	if sc.HasCache {
		for _, dir := range CacheDirs {
			if err := sb.MkdirAll(ctx, dir); err != nil {
				p.reporter.Warn("create cache %s: %v", dir, err)
			}
		}
	}

	if sc.HasLockfile {
		p.writeLockfile(ctx, sb, tool)
	}

	if sc.HasNodeModules {
		if err := sb.MkdirAll(ctx, ModulesDir+"/.bin"); err != nil {
			p.reporter.Warn("create %s: %v", ModulesDir, err)
		}
		if err := sb.WriteFile(ctx, ModulesMarker, nil); err != nil {
			p.reporter.Warn("write modules marker: %v", err)
		}
	}
}

func (p *Preparer) resetWorkdir(ctx context.Context, sb sandbox.Sandbox) {
	entries, err := sb.ReadDir(ctx, ".")
	if err != nil {
		p.reporter.Warn("list working directory: %v", err)
		return
	}
	for _, e := range entries {
		if workdirAllowList[e.Name] {
			continue
		}
		if err := sb.RemoveAll(ctx, e.Name); err != nil {
			p.reporter.Warn("remove %s: %v", e.Name, err)
		}
	}
}

func (p *Preparer) writeLockfile(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec) {
	if tool.Lockfile == "" {
		p.reporter.Warn("%s has no lockfile format, skipping lockfile", tool.Name)
		return
	}
	data, err := LockfileStub(tool.Lockfile)
	if err != nil {
		p.reporter.Warn("render %s: %v", tool.Lockfile, err)
		return
	}
	if err := sb.WriteFile(ctx, tool.Lockfile, data); err != nil {
		p.reporter.Warn("write %s: %v", tool.Lockfile, err)
	}
}

type manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Private      bool              `json:"private"`
	Dependencies map[string]string `json:"dependencies"`
}

// Manifest renders a package.json depending on pkg at its latest version.
func Manifest(pkg string) ([]byte, error) {
	data, err := json.MarshalIndent(manifest{
		Name:         manifestName,
		Version:      "1.0.0",
		Private:      true,
		Dependencies: map[string]string{pkg: "latest"},
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

type npmLockPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type npmLock struct {
	Name            string                    `json:"name"`
	Version         string                    `json:"version"`
	LockfileVersion int                       `json:"lockfileVersion"`
	Requires        bool                      `json:"requires"`
	Packages        map[string]npmLockPackage `json:"packages"`
}

type pnpmLock struct {
	LockfileVersion string                  `yaml:"lockfileVersion"`
	Settings        map[string]bool         `yaml:"settings"`
	Importers       map[string]pnpmImporter `yaml:"importers"`
}

type pnpmImporter struct{}

const yarnLockHeader = "# THIS IS AN AUTOGENERATED FILE. DO NOT EDIT THIS FILE DIRECTLY.\n# yarn lockfile v1\n\n\n"

// LockfileStub returns a minimal valid lockfile with no resolved packages,
// keyed by the lockfile's file name.
func LockfileStub(name string) ([]byte, error) {
	switch name {
	case "package-lock.json":
		data, err := json.MarshalIndent(npmLock{
			Name:            manifestName,
			Version:         "1.0.0",
			LockfileVersion: 3,
			Requires:        true,
			Packages:        map[string]npmLockPackage{"": {Name: manifestName, Version: "1.0.0"}},
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", name, err)
		}
		return append(data, '\n'), nil
	case "pnpm-lock.yaml":
		data, err := yaml.Marshal(pnpmLock{
			LockfileVersion: "9.0",
			Settings:        map[string]bool{"autoInstallPeers": true, "excludeLinksFromLockfile": false},
			Importers:       map[string]pnpmImporter{".": {}},
		})
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", name, err)
		}
		return data, nil
	case "yarn.lock":
		return []byte(yarnLockHeader), nil
	case "bun.lockb":
		return []byte{}, nil
	default:
		return nil, fmt.Errorf("unsupported lockfile %q", name)
	}
}
