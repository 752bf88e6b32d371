package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"
)

// LabelPrefix namespaces every label installbench puts on a container.
const LabelPrefix = "installbench."

// OwnerLabel carries the id of the process that created the container.
const OwnerLabel = LabelPrefix + "owner"

type Client struct {
	docker *client.Client
}

func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{docker: cli}, nil
}

func (c *Client) Close() error {
	return c.docker.Close()
}

// Ping verifies the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docker.Ping(ctx)
	return err
}

// EnsureImage pulls ref unless it is already present locally.
func (c *Client) EnsureImage(ctx context.Context, ref string) error {
	if _, err := c.docker.ImageInspect(ctx, ref); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("image inspect: %w", err)
	}

	rc, err := c.docker.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	defer rc.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	return nil
}

type CreateOpts struct {
	Name        string
	Image       string
	Workdir     string
	Env         []string
	CPULimit    float64
	MemoryBytes int64
	PidsLimit   int
	NetworkMode string
	Labels      map[string]string
}

// CreateContainer creates and starts a long-lived benchmark container.
func (c *Client) CreateContainer(ctx context.Context, opts CreateOpts) (string, error) {
	containerCfg := &container.Config{
		Image:      opts.Image,
		Labels:     containerLabels(opts),
		Env:        opts.Env,
		WorkingDir: opts.Workdir,
		Tty:        false,
		// Keep the container alive; all work happens through exec.
		Cmd: []string{"sh", "-c", "trap 'exit 0' TERM; while true; do sleep 3600 & wait $!; done"},
	}

	resp, err := c.docker.ContainerCreate(ctx, containerCfg, hostConfig(opts), nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}

	if err := c.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Clean up on start failure.
		c.docker.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("container start: %w", err)
	}

	return resp.ID, nil
}

func containerLabels(opts CreateOpts) map[string]string {
	labels := map[string]string{
		LabelPrefix + "managed": "true",
		LabelPrefix + "image":   opts.Image,
	}
	for k, v := range opts.Labels {
		labels[k] = v
	}
	return labels
}

func hostConfig(opts CreateOpts) *container.HostConfig {
	resources := container.Resources{
		NanoCPUs: int64(opts.CPULimit * 1e9),
		Memory:   opts.MemoryBytes,
	}
	if opts.PidsLimit > 0 {
		resources.PidsLimit = int64Ptr(int64(opts.PidsLimit))
	}

	hostCfg := &container.HostConfig{
		Resources:   resources,
		AutoRemove:  false,
		SecurityOpt: []string{"no-new-privileges"},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeTmpfs,
				Target: "/tmp",
				TmpfsOptions: &mount.TmpfsOptions{
					SizeBytes: 512 * units.MiB,
				},
			},
		},
	}
	if opts.NetworkMode != "" {
		hostCfg.NetworkMode = container.NetworkMode(opts.NetworkMode)
	}
	return hostCfg
}

type ExecOpts struct {
	Cmd     []string
	Workdir string
	Env     []string
	Stdin   []byte // written to the process and then closed; nil = no stdin
}

type ExecOutput struct {
	ExitCode int
	Output   []byte // stdout and stderr interleaved
}

// Exec runs a command in the container and collects its combined output.
// When ctx ends first the attached stream is closed and ctx.Err() returned;
// the process itself keeps running and must be killed by the caller.
func (c *Client) Exec(ctx context.Context, containerID string, opts ExecOpts) (*ExecOutput, error) {
	execCfg := container.ExecOptions{
		Cmd:          opts.Cmd,
		WorkingDir:   opts.Workdir,
		Env:          opts.Env,
		AttachStdin:  opts.Stdin != nil,
		AttachStdout: true,
		AttachStderr: true,
	}

	execResp, err := c.docker.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return nil, fmt.Errorf("exec create: %w", err)
	}

	attachResp, err := c.docker.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach: %w", err)
	}
	defer attachResp.Close()

	if opts.Stdin != nil {
		if _, err := attachResp.Conn.Write(opts.Stdin); err != nil {
			return nil, fmt.Errorf("exec stdin: %w", err)
		}
		if err := attachResp.CloseWrite(); err != nil {
			return nil, fmt.Errorf("exec stdin close: %w", err)
		}
	}

	done := make(chan error, 1)
	var buf bytes.Buffer
	go func() {
		// Demultiplex Docker's stream into one buffer so ordering is kept.
		_, err := stdcopy.StdCopy(&buf, &buf, attachResp.Reader)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("exec read: %w", err)
		}
	case <-ctx.Done():
		attachResp.Close()
		<-done
		return nil, ctx.Err()
	}

	exitCode, err := c.waitExitCode(ctx, execResp.ID)
	if err != nil {
		return nil, err
	}
	return &ExecOutput{ExitCode: exitCode, Output: buf.Bytes()}, nil
}

// waitExitCode polls exec inspect until the daemon reports the process gone.
// The stream can hit EOF slightly before the exit code is recorded.
func (c *Client) waitExitCode(ctx context.Context, execID string) (int, error) {
	for i := 0; i < 50; i++ {
		info, err := c.docker.ContainerExecInspect(ctx, execID)
		if err != nil {
			return -1, fmt.Errorf("exec inspect: %w", err)
		}
		if !info.Running {
			return info.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return -1, fmt.Errorf("exec %s still running after output closed", execID)
}

// RemoveContainer force-removes a container.
func (c *Client) RemoveContainer(ctx context.Context, containerID string) error {
	err := c.docker.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container remove: %w", err)
	}
	return nil
}

// ContainerInfo holds basic info about a benchmark container.
type ContainerInfo struct {
	ContainerID string
	Name        string
	CreatedAt   time.Time
	Owner       string // empty for containers created without an owner label
	Running     bool
}

// ListSandboxContainers returns all containers carrying the managed label.
func (c *Client) ListSandboxContainers(ctx context.Context) ([]ContainerInfo, error) {
	f := filters.NewArgs()
	f.Add("label", LabelPrefix+"managed=true")

	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	var result []ContainerInfo
	for _, ctr := range containers {
		result = append(result, containerInfo(ctr))
	}
	return result, nil
}

func containerInfo(ctr container.Summary) ContainerInfo {
	name := ""
	if len(ctr.Names) > 0 {
		name = ctr.Names[0]
	}
	return ContainerInfo{
		ContainerID: ctr.ID,
		Name:        name,
		CreatedAt:   time.Unix(ctr.Created, 0).UTC(),
		Owner:       ctr.Labels[OwnerLabel],
		Running:     ctr.State == container.StateRunning,
	}
}

// IsContainerRunning checks if a container is currently running.
func (c *Client) IsContainerRunning(ctx context.Context, containerID string) (bool, error) {
	info, err := c.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.State.Running, nil
}

func int64Ptr(v int64) *int64 {
	return &v
}
