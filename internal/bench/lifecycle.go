package bench

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/p-arndt/installbench/internal/sandbox"
)

const setupTimeout = 5 * time.Minute

// Lifecycle owns the single sandbox handle. It boots lazily, installs the
// benchmark tools once, and hands the same handle to every later matrix.
type Lifecycle struct {
	booter   sandbox.Booter
	tools    []ToolSpec
	reporter *Reporter
	metrics  Recorder

	mu sync.Mutex
	sb sandbox.Sandbox
}

func NewLifecycle(booter sandbox.Booter, tools []ToolSpec, reporter *Reporter, metrics Recorder) *Lifecycle {
	return &Lifecycle{booter: booter, tools: tools, reporter: reporter, metrics: recorderOrNop(metrics)}
}

// AcquireOrBoot returns the live sandbox, booting and setting it up on first
// use. A failed boot leaves no handle so the next call retries.
func (l *Lifecycle) AcquireOrBoot(ctx context.Context) (sandbox.Sandbox, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sb != nil {
		return l.sb, nil
	}

	l.reporter.Info("Booting sandbox...")
	sb, err := l.booter.Boot(ctx)
	if err != nil {
		return nil, fmt.Errorf("boot sandbox: %w", err)
	}
	l.sb = sb
	l.reporter.Success("Sandbox ready")

	l.installTools(ctx, sb)
	l.verifyTools(ctx, sb)
	return sb, nil
}

// Current returns the live handle or nil.
func (l *Lifecycle) Current() sandbox.Sandbox {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sb
}

// Close tears down the sandbox; the next AcquireOrBoot boots a new one.
func (l *Lifecycle) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sb == nil {
		return nil
	}
	err := l.sb.Close(ctx)
	l.sb = nil
	return err
}

func (l *Lifecycle) installTools(ctx context.Context, sb sandbox.Sandbox) {
	total := len(l.tools)
	l.reporter.UpdateProgress(func(p *ProgressState) {
		p.InstallingTools = true
		p.InstallProgress = 0
		p.InstallTotal = total
	})
	defer l.reporter.UpdateProgress(func(p *ProgressState) {
		p.InstallingTools = false
		p.InstallProgress = total
		p.CurrentInstalling = ""
	})

	for i, tool := range l.tools {
		l.reporter.UpdateProgress(func(p *ProgressState) {
			p.InstallProgress = i
			p.CurrentInstalling = tool.Name
		})

		if tool.SetupCmd == "" {
			l.reporter.Info("%s is preinstalled", tool.Name)
			l.metrics.ObserveSetup(tool.Name, true)
			continue
		}

		l.reporter.Info("Installing %s...", tool.Name)
		ok := l.runSetup(ctx, sb, tool)
		l.metrics.ObserveSetup(tool.Name, ok)
	}
}

func (l *Lifecycle) runSetup(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec) bool {
	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	res, err := sb.Exec(ctx, tool.SetupCmd)
	switch {
	case err != nil:
		l.reporter.Error("Failed to install %s: %v", tool.Name, err)
		return false
	case res.ExitCode != 0:
		l.reporter.Error("Failed to install %s: exit code %d", tool.Name, res.ExitCode)
		return false
	}
	l.reporter.Success("Installed %s", tool.Name)
	return true
}

func (l *Lifecycle) verifyTools(ctx context.Context, sb sandbox.Sandbox) {
	for _, tool := range l.tools {
		if !tool.Verify || tool.VersionCmd == "" {
			continue
		}
		vctx, cancel := context.WithTimeout(ctx, versionTimeout)
		res, err := sb.Exec(vctx, tool.VersionCmd)
		cancel()
		if err != nil || res.ExitCode != 0 {
			l.reporter.Error("%s verification failed", tool.Name)
			continue
		}
		l.reporter.Success("%s %s ready", tool.Name, firstLine(res.Output))
	}
}
