package bench

import (
	"fmt"
	"strings"
)

// ScenarioSpec is a filesystem precondition rebuilt before every run.
type ScenarioSpec struct {
	Name           string
	HasCache       bool
	HasLockfile    bool
	HasNodeModules bool
}

// NewScenario names the scenario after its present facets.
func NewScenario(cache, lockfile, nodeModules bool) ScenarioSpec {
	var parts []string
	if cache {
		parts = append(parts, "cache")
	}
	if lockfile {
		parts = append(parts, "lockfile")
	}
	if nodeModules {
		parts = append(parts, "node_modules")
	}
	name := "clean"
	if len(parts) > 0 {
		name = strings.Join(parts, "+")
	}
	return ScenarioSpec{Name: name, HasCache: cache, HasLockfile: lockfile, HasNodeModules: nodeModules}
}

// AllScenarios returns the eight scenarios in matrix order: by number of
// facets present, then cache before lockfile before node_modules.
func AllScenarios() []ScenarioSpec {
	return []ScenarioSpec{
		NewScenario(false, false, false),
		NewScenario(true, false, false),
		NewScenario(false, true, false),
		NewScenario(false, false, true),
		NewScenario(true, true, false),
		NewScenario(true, false, true),
		NewScenario(false, true, true),
		NewScenario(true, true, true),
	}
}

func LookupScenario(name string) (ScenarioSpec, bool) {
	for _, s := range AllScenarios() {
		if s.Name == name {
			return s, true
		}
	}
	return ScenarioSpec{}, false
}

// SelectScenarios resolves names in the given order; empty means all eight.
func SelectScenarios(names []string) ([]ScenarioSpec, error) {
	if len(names) == 0 {
		return AllScenarios(), nil
	}
	out := make([]ScenarioSpec, 0, len(names))
	for _, n := range names {
		s, ok := LookupScenario(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, n)
		}
		out = append(out, s)
	}
	return out, nil
}
