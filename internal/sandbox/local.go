package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// drainTimeout bounds how long Exec waits for pty output after the process
// exited; a backgrounded grandchild can keep the terminal open forever.
const drainTimeout = 2 * time.Second

// RootMarker is written into a local sandbox root. A non-empty directory
// without it is refused, since every run empties the working directory.
const RootMarker = ".installbench-root"

// LocalBooter boots a sandbox in a host directory. It trades isolation for
// not needing a docker daemon and is meant for development machines.
type LocalBooter struct {
	root   string
	logger *slog.Logger
}

// NewLocalBooter returns a booter rooted at root; empty root means a fresh
// temporary directory.
func NewLocalBooter(root string, logger *slog.Logger) *LocalBooter {
	return &LocalBooter{root: root, logger: logger}
}

func (b *LocalBooter) Boot(ctx context.Context) (Sandbox, error) {
	for _, bin := range []string{"sh", "node", "npm"} {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, fmt.Errorf("%w: %s not found on PATH", ErrUnavailable, bin)
		}
	}

	root := b.root
	if root == "" {
		dir, err := os.MkdirTemp("", "installbench-")
		if err != nil {
			return nil, fmt.Errorf("%w: create sandbox dir: %v", ErrUnavailable, err)
		}
		root = dir
	} else if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create sandbox dir: %v", ErrUnavailable, err)
	}
	if err := claimRoot(root); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	b.logger.Info("local sandbox ready", "root", abs)
	return NewLocal(abs), nil
}

func claimRoot(root string) error {
	marker := filepath.Join(root, RootMarker)
	if _, err := os.Stat(marker); err == nil {
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("%w: read sandbox dir: %v", ErrUnavailable, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s is not empty and was not created by installbench", ErrUnavailable, root)
	}
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return fmt.Errorf("%w: write root marker: %v", ErrUnavailable, err)
	}
	return nil
}

// Local is a Sandbox rooted in a host directory.
type Local struct {
	root string
	env  []string
}

func NewLocal(root string) *Local {
	return &Local{root: root, env: Env(root, os.Getenv("PATH"))}
}

func (l *Local) Workdir() string { return l.root }

// Exec runs cmd on a pseudo-terminal so stdout and stderr arrive interleaved
// the way a user would see them.
func (l *Local) Exec(ctx context.Context, command string) (*ExecResult, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = l.root
	cmd.Env = l.env

	start := time.Now()
	// pty.Start puts the child in its own session, so -pid is its group.
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("exec %q: pty start: %w", command, err)
	}
	defer ptmx.Close()
	pty.Setsize(ptmx, &pty.Winsize{Rows: 40, Cols: 200})

	var buf bytes.Buffer
	copyDone := make(chan struct{})
	go func() {
		io.Copy(&buf, ptmx) // ends with EIO once the terminal closes
		close(copyDone)
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitDone:
	case <-ctx.Done():
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-waitDone
		ptmx.Close()
		<-copyDone
		return nil, fmt.Errorf("exec %q: %w", command, ctx.Err())
	}

	select {
	case <-copyDone:
	case <-time.After(drainTimeout):
		ptmx.Close()
		<-copyDone
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("exec %q: %w", command, waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ExecResult{
		ExitCode: exitCode,
		Output:   cleanOutput(buf.String()),
		Duration: time.Since(start),
	}, nil
}

func (l *Local) abs(p string) string {
	return filepath.FromSlash(joinPath(l.root, filepath.ToSlash(p)))
}

func (l *Local) WriteFile(_ context.Context, p string, data []byte) error {
	abs := l.abs(p)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (l *Local) MkdirAll(_ context.Context, p string) error {
	if err := os.MkdirAll(l.abs(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

func (l *Local) RemoveAll(_ context.Context, p string) error {
	if err := os.RemoveAll(l.abs(p)); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

func (l *Local) ReadDir(_ context.Context, p string) ([]DirEntry, error) {
	ents, err := os.ReadDir(l.abs(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return nil, fmt.Errorf("readdir %s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("readdir %s: %w", p, err)
	}
	out := make([]DirEntry, 0, len(ents))
	for _, e := range ents {
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

func (l *Local) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Lstat(l.abs(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}

func (l *Local) FindFiles(_ context.Context, root, name string) ([]string, error) {
	absRoot := l.abs(root)
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("find %s: %w", root, ErrNotFound)
	}

	var files []string
	// WalkDir does not follow symlinks, matching find's default.
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() && d.Name() == name {
			files = append(files, relPath(filepath.ToSlash(l.root), filepath.ToSlash(p)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", root, err)
	}
	return files, nil
}

// Close keeps the directory; it belongs to whoever chose the root.
func (l *Local) Close(context.Context) error {
	return nil
}
