package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/p-arndt/installbench/internal/sandbox"
	"github.com/tidwall/gjson"
)

// CountStrategy is one way of counting installed packages. Strategies return
// zero or an error when they cannot tell; the Counter then tries the next.
type CountStrategy interface {
	Name() string
	Count(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec) (int, error)
}

// Counter runs its strategies in order and keeps the first positive count.
type Counter struct {
	strategies []CountStrategy
	logger     *slog.Logger
}

func NewCounter(logger *slog.Logger, strategies ...CountStrategy) *Counter {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Counter{strategies: strategies, logger: logger}
}

// DefaultStrategies returns structural scan, native listing, manual traversal.
func DefaultStrategies() []CountStrategy {
	return []CountStrategy{StructuralScan{}, NativeListing{Timeout: 30 * time.Second}, ManualTraversal{}}
}

// Count returns 0 when no modules directory exists or no strategy succeeds.
func (c *Counter) Count(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec) int {
	ok, err := sb.Exists(ctx, ModulesDir)
	if err != nil || !ok {
		return 0
	}
	for _, s := range c.strategies {
		n, err := s.Count(ctx, sb, tool)
		if err != nil {
			c.logger.Debug("count strategy failed", "strategy", s.Name(), "tool", tool.Name, "error", err)
			continue
		}
		if n > 0 {
			return n
		}
	}
	return 0
}

// packageManifestRe matches the manifest of a package sitting directly in a
// modules directory, scoped or not. Nested manifests inside a package and
// dot-directories such as .bin or .pnpm are not matched.
var packageManifestRe = regexp.MustCompile(`(^|/)node_modules/(@[^/]+/)?[^/@.][^/]*/package\.json$`)

// StructuralScan counts package manifests found anywhere under the modules
// directory, including nested and store-layout trees.
type StructuralScan struct{}

func (StructuralScan) Name() string { return "structural" }

func (StructuralScan) Count(ctx context.Context, sb sandbox.Sandbox, _ ToolSpec) (int, error) {
	files, err := sb.FindFiles(ctx, ModulesDir, ManifestFile)
	if err != nil {
		return 0, fmt.Errorf("find manifests: %w", err)
	}
	return CountManifests(files), nil
}

// CountManifests counts the paths that are package manifests.
func CountManifests(paths []string) int {
	n := 0
	for _, p := range paths {
		if packageManifestRe.MatchString(p) {
			n++
		}
	}
	return n
}

// NativeListing asks the tool for its JSON dependency tree.
type NativeListing struct {
	Timeout time.Duration
}

func (NativeListing) Name() string { return "native" }

func (s NativeListing) Count(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec) (int, error) {
	if tool.ListCmd == "" {
		return 0, nil
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	res, err := sb.Exec(ctx, tool.ListCmd+" 2>/dev/null")
	if err != nil {
		return 0, fmt.Errorf("list dependencies: %w", err)
	}
	// npm ls exits non-zero on peer problems but still prints the tree.
	return CountDependencyTree(res.Output)
}

var errNoJSON = errors.New("no JSON document in listing output")

// CountDependencyTree counts every node of an npm or pnpm JSON listing.
// pnpm prints an array of projects, npm a single root object.
func CountDependencyTree(out string) (int, error) {
	start := strings.IndexAny(out, "{[")
	if start < 0 {
		return 0, errNoJSON
	}
	doc := out[start:]
	if !gjson.Valid(doc) {
		return 0, errNoJSON
	}
	return countTree(gjson.Parse(doc)), nil
}

var dependencyKeys = []string{"dependencies", "optionalDependencies", "devDependencies"}

func countTree(v gjson.Result) int {
	n := 0
	if v.IsArray() {
		v.ForEach(func(_, item gjson.Result) bool {
			n += countTree(item)
			return true
		})
		return n
	}
	for _, key := range dependencyKeys {
		v.Get(key).ForEach(func(_, dep gjson.Result) bool {
			n += 1 + countTree(dep)
			return true
		})
	}
	return n
}

// ManualTraversal lists the top level of the modules directory and one level
// into scope directories, counting entries that hold a manifest.
type ManualTraversal struct{}

func (ManualTraversal) Name() string { return "manual" }

func (ManualTraversal) Count(ctx context.Context, sb sandbox.Sandbox, _ ToolSpec) (int, error) {
	entries, err := sb.ReadDir(ctx, ModulesDir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", ModulesDir, err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name, ".") {
			continue
		}
		dir := path.Join(ModulesDir, e.Name)
		if strings.HasPrefix(e.Name, "@") {
			scoped, err := sb.ReadDir(ctx, dir)
			if err != nil {
				continue
			}
			for _, se := range scoped {
				if strings.HasPrefix(se.Name, ".") {
					continue
				}
				if hasManifest(ctx, sb, path.Join(dir, se.Name)) {
					n++
				}
			}
			continue
		}
		if hasManifest(ctx, sb, dir) {
			n++
		}
	}
	return n, nil
}

func hasManifest(ctx context.Context, sb sandbox.Sandbox, dir string) bool {
	ok, err := sb.Exists(ctx, path.Join(dir, ManifestFile))
	return err == nil && ok
}
