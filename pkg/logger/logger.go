// Package logger provides the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/lmittmann/tint"
)

var (
	mu      sync.Mutex
	slogger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))
	logFile *os.File
	verbose bool
)

// Init directs log output to the given file path. An empty path keeps
// the default stderr handler.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	w := io.Writer(os.Stderr)
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		w = f
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slogger = slog.New(tint.NewHandler(w, &tint.Options{
		Level:   level,
		NoColor: logFile != nil,
	}))
	return nil
}

// SetVerbose enables debug-level output. Takes effect on the next Init
// as well as immediately for the current handler destination.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	path := ""
	if logFile != nil {
		path = logFile.Name()
	}
	mu.Unlock()
	// Rebuild the handler at the new level on the current destination.
	Init(path) //nolint:errcheck // destination already validated
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Info logs an info message with optional structured attributes.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return slogger
}

// GetWriter returns the underlying writer for use by collaborators
// that want to share the log destination.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return os.Stderr
}
