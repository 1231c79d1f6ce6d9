package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/offline-coder/internal/config"
)

// FileName is the debug log written under .offline/logs.
const FileName = "offline-coder.log"

// Level tags each debug line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelError Level = "ERROR"
)

// Logger keeps the backend's debug trail (resolved config, request timings,
// failed calls) in .offline/logs/offline-coder.log. The user-facing journey
// lives in the logbook package; this file is for diagnosing the model server.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// New opens the debug log for projectDir, appending to an existing file.
func New(projectDir string) (*Logger, error) {
	logDir := filepath.Join(projectDir, config.Dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{file: f, now: time.Now}, nil
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Debugf records routine backend activity.
func (l *Logger) Debugf(format string, args ...any) {
	l.write(LevelDebug, format, args...)
}

// Errorf records a failed backend call.
func (l *Logger) Errorf(format string, args ...any) {
	l.write(LevelError, format, args...)
}

func (l *Logger) write(level Level, format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	message := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "[%s] %-5s %s\n", l.now().Format(time.RFC3339), level, message)
}
