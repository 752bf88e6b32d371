// Package sandbox provides the isolated environment benchmark installs run in.
// Paths passed to a Sandbox are relative to its working directory.
package sandbox

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable means the isolation precondition of a backend is not met.
	ErrUnavailable = errors.New("sandbox unavailable")
	ErrNotFound    = errors.New("no such file or directory")
)

type DirEntry struct {
	Name  string
	IsDir bool
}

type ExecResult struct {
	ExitCode int
	Output   string // stdout and stderr combined
	Duration time.Duration
}

// Sandbox is one live isolated environment. Implementations are not safe for
// concurrent use; callers serialize access.
type Sandbox interface {
	// Exec runs cmd through sh in the working directory. When ctx ends before
	// the command does, the whole process group is killed and the returned
	// error wraps ctx.Err().
	Exec(ctx context.Context, cmd string) (*ExecResult, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	MkdirAll(ctx context.Context, path string) error
	// RemoveAll succeeds when path does not exist.
	RemoveAll(ctx context.Context, path string) error
	// ReadDir returns ErrNotFound when path is not a directory.
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)
	Exists(ctx context.Context, path string) (bool, error)
	// FindFiles lists regular files called name below root without following
	// symlinks. Returned paths are relative to the working directory.
	FindFiles(ctx context.Context, root, name string) ([]string, error)
	Workdir() string
	Close(ctx context.Context) error
}

// Booter creates a Sandbox after checking the backend's precondition.
type Booter interface {
	Boot(ctx context.Context) (Sandbox, error)
}

// Env returns the environment every backend gives install commands: the
// working directory doubles as HOME, and global tools live under it.
func Env(workdir string, basePath string) []string {
	prefix := workdir + "/.npm-global"
	return []string{
		"HOME=" + workdir,
		"NPM_CONFIG_PREFIX=" + prefix,
		"PATH=" + prefix + "/bin:" + basePath,
		"CI=true",
		"NO_COLOR=1",
		"LANG=C.UTF-8",
	}
}
