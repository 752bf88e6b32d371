package bench

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/p-arndt/installbench/internal/sandbox"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type MockBooter struct {
	mock.Mock
}

func (m *MockBooter) Boot(ctx context.Context) (sandbox.Sandbox, error) {
	args := m.Called(ctx)
	sb, _ := args.Get(0).(sandbox.Sandbox)
	return sb, args.Error(1)
}

type MockStrategy struct {
	mock.Mock
	name string
}

func (m *MockStrategy) Name() string { return m.name }

func (m *MockStrategy) Count(ctx context.Context, sb sandbox.Sandbox, tool ToolSpec) (int, error) {
	args := m.Called(ctx, sb, tool)
	return args.Int(0), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ObserveRun(r TestResult) {
	m.Called(r)
}

func (m *MockRecorder) ObserveSetup(tool string, ok bool) {
	m.Called(tool, ok)
}

// fakeSandbox keeps a real temporary filesystem and scripts Exec.
type fakeSandbox struct {
	*sandbox.Local

	mu     sync.Mutex
	cmds   []string
	exec   func(ctx context.Context, cmd string) (*sandbox.ExecResult, error)
	closed bool
}

func newFakeSandbox(t *testing.T) *fakeSandbox {
	t.Helper()
	return &fakeSandbox{Local: sandbox.NewLocal(t.TempDir())}
}

func (f *fakeSandbox) Exec(ctx context.Context, cmd string) (*sandbox.ExecResult, error) {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	fn := f.exec
	f.mu.Unlock()
	if fn == nil {
		return &sandbox.ExecResult{}, nil
	}
	return fn(ctx, cmd)
}

func (f *fakeSandbox) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSandbox) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}
