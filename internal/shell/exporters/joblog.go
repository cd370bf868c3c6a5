package exporters

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// JobLog collects the per-run log for one export instance and counts
// errors and warnings as they are written. The counts feed the final
// instance status and the admin notification.
type JobLog struct {
	instanceID string
	path       string

	mu     sync.Mutex
	writer io.WriteCloser

	errors   int64
	warnings int64
}

// NewJobLog opens (or creates) the shared exporter log file and tags
// every line with the instance id.
func NewJobLog(logDir, instanceID string) (*JobLog, error) {
	path := filepath.Join(logDir, "exporter.log")

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open export log: %w", err)
	}

	return &JobLog{instanceID: instanceID, path: path, writer: file}, nil
}

// NewJobLogWithWriter is used by tests.
func NewJobLogWithWriter(instanceID string, w io.WriteCloser) *JobLog {
	return &JobLog{instanceID: instanceID, path: "", writer: w}
}

// Path returns the log file location, for inclusion in notifications.
func (l *JobLog) Path() string {
	return l.path
}

func (l *JobLog) Info(format string, args ...interface{}) {
	l.write("INFO", format, args...)
}

func (l *JobLog) Warning(format string, args ...interface{}) {
	atomic.AddInt64(&l.warnings, 1)
	l.write("WARNING", format, args...)
}

func (l *JobLog) Error(format string, args ...interface{}) {
	atomic.AddInt64(&l.errors, 1)
	l.write("ERROR", format, args...)
}

// Counts returns the errors and warnings written so far.
func (l *JobLog) Counts() (int, int) {
	return int(atomic.LoadInt64(&l.errors)), int(atomic.LoadInt64(&l.warnings))
}

func (l *JobLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == nil {
		return nil
	}
	err := l.writer.Close()
	l.writer = nil
	return err
}

func (l *JobLog) write(level, format string, args ...interface{}) {
	line := fmt.Sprintf("%s [%s] [%s] %s\n",
		time.Now().UTC().Format(time.RFC3339), level, l.instanceID,
		fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == nil {
		return
	}
	if _, err := io.WriteString(l.writer, line); err != nil {
		log.Printf("[EXPORT] failed to write export log: %v", err)
	}
}
