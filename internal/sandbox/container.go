package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-arndt/installbench/internal/docker"
)

const defaultBasePath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// killTimeout bounds the exec that kills a timed-out process group.
const killTimeout = 10 * time.Second

// ContainerClient abstracts the docker operations a container sandbox needs.
type ContainerClient interface {
	Ping(ctx context.Context) error
	EnsureImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, opts docker.CreateOpts) (string, error)
	Exec(ctx context.Context, containerID string, opts docker.ExecOpts) (*docker.ExecOutput, error)
	RemoveContainer(ctx context.Context, containerID string) error
}

type ContainerOpts struct {
	Image       string
	Workdir     string
	CPULimit    float64
	MemoryBytes int64
	PidsLimit   int
	NetworkMode string
	// Owner is written to docker.OwnerLabel so other processes' sweepers
	// leave the container alone while it runs.
	Owner string
}

// DockerBooter boots a Container sandbox.
type DockerBooter struct {
	client ContainerClient
	opts   ContainerOpts
	logger *slog.Logger
}

func NewDockerBooter(client ContainerClient, opts ContainerOpts, logger *slog.Logger) *DockerBooter {
	if opts.Workdir == "" {
		opts.Workdir = "/home/bench"
	}
	return &DockerBooter{client: client, opts: opts, logger: logger}
}

func (b *DockerBooter) Boot(ctx context.Context) (Sandbox, error) {
	if err := b.client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: docker daemon not reachable: %v", ErrUnavailable, err)
	}
	if err := b.client.EnsureImage(ctx, b.opts.Image); err != nil {
		return nil, fmt.Errorf("%w: image %s: %v", ErrUnavailable, b.opts.Image, err)
	}

	name := "installbench-" + uuid.New().String()[:12]
	id, err := b.client.CreateContainer(ctx, docker.CreateOpts{
		Name:        name,
		Image:       b.opts.Image,
		Workdir:     b.opts.Workdir,
		Env:         Env(b.opts.Workdir, defaultBasePath),
		CPULimit:    b.opts.CPULimit,
		MemoryBytes: b.opts.MemoryBytes,
		PidsLimit:   b.opts.PidsLimit,
		NetworkMode: b.opts.NetworkMode,
		Labels:      ownerLabels(b.opts.Owner),
	})
	if err != nil {
		return nil, fmt.Errorf("boot sandbox: %w", err)
	}

	b.logger.Info("sandbox container started", "name", name, "container", shortID(id), "image", b.opts.Image)
	return &Container{client: b.client, id: id, workdir: b.opts.Workdir, logger: b.logger}, nil
}

func ownerLabels(owner string) map[string]string {
	if owner == "" {
		return nil
	}
	return map[string]string{docker.OwnerLabel: owner}
}

// Container is a Sandbox backed by one long-lived docker container.
type Container struct {
	client  ContainerClient
	id      string
	workdir string
	logger  *slog.Logger
}

func (c *Container) ID() string      { return c.id }
func (c *Container) Workdir() string { return c.workdir }

func (c *Container) Exec(ctx context.Context, cmd string) (*ExecResult, error) {
	// The wrapper shell becomes a session leader, so its pid is the group
	// id to kill on timeout.
	pidFile := "/tmp/.installbench-" + uuid.New().String()[:8] + ".pid"
	wrapped := fmt.Sprintf("echo $$ > %s; sh -c %s; rc=$?; rm -f %s; exit $rc",
		pidFile, shellQuote(cmd), pidFile)

	start := time.Now()
	out, err := c.client.Exec(ctx, c.id, docker.ExecOpts{
		Cmd:     []string{"setsid", "sh", "-c", wrapped},
		Workdir: c.workdir,
	})
	if err != nil {
		if ctx.Err() != nil {
			c.killGroup(pidFile)
			return nil, fmt.Errorf("exec %q: %w", cmd, ctx.Err())
		}
		return nil, fmt.Errorf("exec %q: %w", cmd, err)
	}

	return &ExecResult{
		ExitCode: out.ExitCode,
		Output:   cleanOutput(string(out.Output)),
		Duration: time.Since(start),
	}, nil
}

func (c *Container) killGroup(pidFile string) {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	script := fmt.Sprintf(`[ -f %[1]s ] && kill -9 -"$(cat %[1]s)" 2>/dev/null; rm -f %[1]s`, pidFile)
	if _, err := c.client.Exec(ctx, c.id, docker.ExecOpts{Cmd: []string{"sh", "-c", script}}); err != nil {
		c.logger.Warn("kill timed-out process group", "container", shortID(c.id), "error", err)
	}
}

// script runs a helper shell snippet that is not part of a measurement.
func (c *Container) script(ctx context.Context, script string, stdin []byte) (*docker.ExecOutput, error) {
	return c.client.Exec(ctx, c.id, docker.ExecOpts{
		Cmd:     []string{"sh", "-c", script},
		Workdir: c.workdir,
		Stdin:   stdin,
	})
}

func (c *Container) WriteFile(ctx context.Context, p string, data []byte) error {
	abs := shellQuote(joinPath(c.workdir, p))
	if data == nil {
		data = []byte{}
	}
	out, err := c.script(ctx, fmt.Sprintf(`mkdir -p "$(dirname %s)" && cat > %s`, abs, abs), data)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("write %s: %s", p, strings.TrimSpace(string(out.Output)))
	}
	return nil
}

func (c *Container) MkdirAll(ctx context.Context, p string) error {
	out, err := c.script(ctx, "mkdir -p "+shellQuote(joinPath(c.workdir, p)), nil)
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("mkdir %s: %s", p, strings.TrimSpace(string(out.Output)))
	}
	return nil
}

func (c *Container) RemoveAll(ctx context.Context, p string) error {
	out, err := c.script(ctx, "rm -rf -- "+shellQuote(joinPath(c.workdir, p)), nil)
	if err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("remove %s: %s", p, strings.TrimSpace(string(out.Output)))
	}
	return nil
}

func (c *Container) ReadDir(ctx context.Context, p string) ([]DirEntry, error) {
	abs := shellQuote(joinPath(c.workdir, p))
	out, err := c.script(ctx, fmt.Sprintf(`[ -d %[1]s ] || exit 3; find %[1]s -mindepth 1 -maxdepth 1 -printf '%%y\t%%f\n'`, abs), nil)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", p, err)
	}
	switch out.ExitCode {
	case 0:
	case 3:
		return nil, fmt.Errorf("readdir %s: %w", p, ErrNotFound)
	default:
		return nil, fmt.Errorf("readdir %s: %s", p, strings.TrimSpace(string(out.Output)))
	}
	return parseFindEntries(string(out.Output)), nil
}

// parseFindEntries reads `find -printf '%y\t%f\n'` output.
func parseFindEntries(s string) []DirEntry {
	var entries []DirEntry
	for _, line := range strings.Split(s, "\n") {
		kind, name, ok := strings.Cut(line, "\t")
		if !ok || name == "" {
			continue
		}
		entries = append(entries, DirEntry{Name: name, IsDir: kind == "d"})
	}
	return entries
}

func (c *Container) Exists(ctx context.Context, p string) (bool, error) {
	abs := shellQuote(joinPath(c.workdir, p))
	out, err := c.script(ctx, fmt.Sprintf("[ -e %[1]s ] || [ -L %[1]s ]", abs), nil)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	return out.ExitCode == 0, nil
}

func (c *Container) FindFiles(ctx context.Context, root, name string) ([]string, error) {
	abs := shellQuote(joinPath(c.workdir, root))
	out, err := c.script(ctx, fmt.Sprintf(`[ -d %[1]s ] || exit 3; find %[1]s -type f -name %[2]s 2>/dev/null; exit 0`, abs, shellQuote(name)), nil)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", root, err)
	}
	if out.ExitCode == 3 {
		return nil, fmt.Errorf("find %s: %w", root, ErrNotFound)
	}

	var files []string
	for _, line := range strings.Split(string(out.Output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, relPath(c.workdir, line))
	}
	return files, nil
}

// Close removes the container.
func (c *Container) Close(ctx context.Context) error {
	return c.client.RemoveContainer(ctx, c.id)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
