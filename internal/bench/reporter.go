package bench

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Reporter owns the progress snapshot and the append-only log stream that
// the UI polls. Every entry is mirrored to the structured logger.
type Reporter struct {
	mu       sync.RWMutex
	progress ProgressState
	logs     []LogEntry
	onLog    func(LogEntry)

	logger *slog.Logger
	now    func() time.Time
}

func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{logger: logger, now: time.Now}
}

// OnLog registers fn to be called synchronously with every new entry.
func (r *Reporter) OnLog(fn func(LogEntry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLog = fn
}

func (r *Reporter) Info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Info(msg)
	r.append(LevelInfo, msg)
}

func (r *Reporter) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Info(msg, "outcome", "success")
	r.append(LevelSuccess, msg)
}

func (r *Reporter) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Error(msg)
	r.append(LevelError, msg)
}

// Warn records a non-fatal problem. The stream has no warning level, so it
// is shown as info with a prefix.
func (r *Reporter) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Warn(msg)
	r.append(LevelInfo, "warning: "+msg)
}

func (r *Reporter) append(level Level, msg string) {
	r.mu.Lock()
	entry := LogEntry{Timestamp: r.now(), Level: level, Message: msg}
	r.logs = append(r.logs, entry)
	fn := r.onLog
	r.mu.Unlock()

	if fn != nil {
		r.notify(fn, entry)
	}
}

// notify isolates the stream from a failing subscriber.
func (r *Reporter) notify(fn func(LogEntry), entry LogEntry) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("log subscriber panicked", "error", p)
		}
	}()
	fn(entry)
}

// Logs returns entries from index since on. Out of range since yields nil.
func (r *Reporter) Logs(since int) []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if since < 0 {
		since = 0
	}
	if since >= len(r.logs) {
		return nil
	}
	return append([]LogEntry(nil), r.logs[since:]...)
}

func (r *Reporter) LogCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.logs)
}

func (r *Reporter) Progress() ProgressState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

// UpdateProgress applies fn to the snapshot under the lock.
func (r *Reporter) UpdateProgress(fn func(p *ProgressState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.progress)
}

// ResetProgress replaces the snapshot for a new matrix. The log stream is
// never cleared, so cursors handed out earlier stay valid.
func (r *Reporter) ResetProgress(p ProgressState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = p
}
