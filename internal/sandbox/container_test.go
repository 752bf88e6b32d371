package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/p-arndt/installbench/internal/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestContainer(client *MockContainerClient) *Container {
	return &Container{client: client, id: "abcdef1234567890", workdir: "/home/bench", logger: testLogger()}
}

func scriptContains(substr string) any {
	return mock.MatchedBy(func(opts docker.ExecOpts) bool {
		return len(opts.Cmd) == 3 && opts.Cmd[0] == "sh" && strings.Contains(opts.Cmd[2], substr)
	})
}

func TestDockerBooter_PingFails(t *testing.T) {
	client := &MockContainerClient{}
	client.On("Ping", mock.Anything).Return(errors.New("connection refused"))

	b := NewDockerBooter(client, ContainerOpts{Image: "node:22"}, testLogger())
	_, err := b.Boot(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
	client.AssertNotCalled(t, "CreateContainer", mock.Anything, mock.Anything)
}

func TestDockerBooter_ImageMissing(t *testing.T) {
	client := &MockContainerClient{}
	client.On("Ping", mock.Anything).Return(nil)
	client.On("EnsureImage", mock.Anything, "node:22").Return(errors.New("pull access denied"))

	b := NewDockerBooter(client, ContainerOpts{Image: "node:22"}, testLogger())
	_, err := b.Boot(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDockerBooter_Success(t *testing.T) {
	client := &MockContainerClient{}
	client.On("Ping", mock.Anything).Return(nil)
	client.On("EnsureImage", mock.Anything, "node:22").Return(nil)
	client.On("CreateContainer", mock.Anything, mock.MatchedBy(func(opts docker.CreateOpts) bool {
		return opts.Image == "node:22" &&
			opts.Workdir == "/home/bench" &&
			strings.HasPrefix(opts.Name, "installbench-") &&
			contains(opts.Env, "HOME=/home/bench") &&
			opts.Labels[docker.OwnerLabel] == "proc-1"
	})).Return("container-id-123456", nil)

	b := NewDockerBooter(client, ContainerOpts{Image: "node:22", Owner: "proc-1"}, testLogger())
	sb, err := b.Boot(context.Background())
	require.NoError(t, err)

	c, ok := sb.(*Container)
	require.True(t, ok)
	assert.Equal(t, "container-id-123456", c.ID())
	assert.Equal(t, "/home/bench", c.Workdir())
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestContainerExec_WrapsInSession(t *testing.T) {
	client := &MockContainerClient{}
	c := newTestContainer(client)

	client.On("Exec", mock.Anything, c.id, mock.MatchedBy(func(opts docker.ExecOpts) bool {
		return len(opts.Cmd) == 4 &&
			opts.Cmd[0] == "setsid" &&
			strings.Contains(opts.Cmd[3], "sh -c 'npm install'") &&
			opts.Workdir == "/home/bench"
	})).Return(&docker.ExecOutput{ExitCode: 0, Output: []byte("added 1 package\r\n")}, nil)

	res, err := c.Exec(context.Background(), "npm install")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "added 1 package\n", res.Output)
}

func TestContainerExec_TimeoutKillsGroup(t *testing.T) {
	client := &MockContainerClient{}
	c := newTestContainer(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client.On("Exec", mock.Anything, c.id, mock.MatchedBy(func(opts docker.ExecOpts) bool {
		return opts.Cmd[0] == "setsid"
	})).Return(nil, context.Canceled)
	client.On("Exec", mock.Anything, c.id, mock.MatchedBy(func(opts docker.ExecOpts) bool {
		return opts.Cmd[0] == "sh" && strings.Contains(opts.Cmd[2], "kill -9")
	})).Return(&docker.ExecOutput{}, nil)

	_, err := c.Exec(ctx, "sleep 1000")
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNumberOfCalls(t, "Exec", 2)
}

func TestContainerReadDir(t *testing.T) {
	client := &MockContainerClient{}
	c := newTestContainer(client)

	client.On("Exec", mock.Anything, c.id, scriptContains("/home/bench/node_modules")).Return(&docker.ExecOutput{
		Output: []byte("d\tleft-pad\nd\t@types\nf\t.package-lock.json\n"),
	}, nil)

	entries, err := c.ReadDir(context.Background(), "node_modules")
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{
		{Name: "left-pad", IsDir: true},
		{Name: "@types", IsDir: true},
		{Name: ".package-lock.json", IsDir: false},
	}, entries)
}

func TestContainerReadDir_Missing(t *testing.T) {
	client := &MockContainerClient{}
	c := newTestContainer(client)

	client.On("Exec", mock.Anything, c.id, mock.Anything).Return(&docker.ExecOutput{ExitCode: 3}, nil)

	_, err := c.ReadDir(context.Background(), "node_modules")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContainerFindFiles_RelativePaths(t *testing.T) {
	client := &MockContainerClient{}
	c := newTestContainer(client)

	client.On("Exec", mock.Anything, c.id, scriptContains("-name 'package.json'")).Return(&docker.ExecOutput{
		Output: []byte("/home/bench/node_modules/a/package.json\n/home/bench/node_modules/@s/b/package.json\n"),
	}, nil)

	files, err := c.FindFiles(context.Background(), "node_modules", "package.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"node_modules/a/package.json", "node_modules/@s/b/package.json"}, files)
}

func TestContainerWriteFile_SendsStdin(t *testing.T) {
	client := &MockContainerClient{}
	c := newTestContainer(client)

	client.On("Exec", mock.Anything, c.id, mock.MatchedBy(func(opts docker.ExecOpts) bool {
		return string(opts.Stdin) == `{"name":"x"}` && strings.Contains(opts.Cmd[2], "cat > '/home/bench/package.json'")
	})).Return(&docker.ExecOutput{}, nil)

	require.NoError(t, c.WriteFile(context.Background(), "package.json", []byte(`{"name":"x"}`)))
	client.AssertExpectations(t)
}

func TestContainerWriteFile_EmptyFileStillAttachesStdin(t *testing.T) {
	client := &MockContainerClient{}
	c := newTestContainer(client)

	client.On("Exec", mock.Anything, c.id, mock.MatchedBy(func(opts docker.ExecOpts) bool {
		return opts.Stdin != nil && len(opts.Stdin) == 0
	})).Return(&docker.ExecOutput{}, nil)

	require.NoError(t, c.WriteFile(context.Background(), "bun.lockb", nil))
}

func TestContainerExists(t *testing.T) {
	client := &MockContainerClient{}
	c := newTestContainer(client)

	client.On("Exec", mock.Anything, c.id, scriptContains("/home/bench/node_modules")).Return(&docker.ExecOutput{ExitCode: 1}, nil)

	ok, err := c.Exists(context.Background(), "node_modules")
	require.NoError(t, err)
	assert.False(t, ok)
}
