package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileOps(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(t.TempDir())

	require.NoError(t, l.WriteFile(ctx, "a/b/package.json", []byte(`{}`)))
	require.NoError(t, l.MkdirAll(ctx, "a/empty"))

	ok, err := l.Exists(ctx, "a/b/package.json")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := l.ReadDir(ctx, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []DirEntry{{Name: "b", IsDir: true}, {Name: "empty", IsDir: true}}, entries)

	require.NoError(t, l.RemoveAll(ctx, "a"))
	require.NoError(t, l.RemoveAll(ctx, "a")) // missing is fine

	ok, err = l.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.ReadDir(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalFindFiles_SkipsSymlinks(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := NewLocal(root)

	require.NoError(t, l.WriteFile(ctx, "node_modules/.pnpm/a@1.0.0/node_modules/a/package.json", []byte(`{}`)))
	require.NoError(t, os.Symlink(
		filepath.Join(root, "node_modules/.pnpm/a@1.0.0/node_modules/a"),
		filepath.Join(root, "node_modules/a"),
	))

	files, err := l.FindFiles(ctx, "node_modules", "package.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"node_modules/.pnpm/a@1.0.0/node_modules/a/package.json"}, files)

	_, err = l.FindFiles(ctx, "missing", "package.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func requirePTY(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/ptmx"); err != nil {
		t.Skip("no pty support")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh")
	}
}

func TestLocalExec(t *testing.T) {
	requirePTY(t)
	l := NewLocal(t.TempDir())

	res, err := l.Exec(context.Background(), "echo out; echo err 1>&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "out\n")
	assert.Contains(t, res.Output, "err\n")
}

func TestLocalExec_HomeIsWorkdir(t *testing.T) {
	requirePTY(t)
	root := t.TempDir()
	l := NewLocal(root)

	res, err := l.Exec(context.Background(), `printf %s "$HOME"`)
	require.NoError(t, err)
	assert.Equal(t, root, res.Output)
}

func TestLocalExec_DeadlineKills(t *testing.T) {
	requirePTY(t)
	l := NewLocal(t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := l.Exec(ctx, "sleep 30")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClaimRoot(t *testing.T) {
	empty := t.TempDir()
	require.NoError(t, claimRoot(empty))
	assert.FileExists(t, filepath.Join(empty, RootMarker))
	require.NoError(t, claimRoot(empty), "already claimed")

	busy := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(busy, "notes.txt"), []byte("x"), 0o644))
	err := claimRoot(busy)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoFileExists(t, filepath.Join(busy, RootMarker))
}
