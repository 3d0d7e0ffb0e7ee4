// Package logger writes structured JSON lines for the migrator. Call sites pass
// a message plus a flat field map, e.g.
//
//	logger.Info("table migrated", map[string]any{"table": "film", "documents": 1000})
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	level  = new(slog.LevelVar)
	file   *os.File
	logger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetFile redirects all log output to the file at path, appending to it.
func SetFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
	}
	file = f
	logger = newLogger(f)
	return nil
}

// SetOutput redirects log output to w. Mostly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

// SetLevel accepts debug, info, warn or error.
func SetLevel(name string) error {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "", "info":
		level.Set(slog.LevelInfo)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level %q", name)
	}
	return nil
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	logger = newLogger(os.Stderr)
	return err
}

func Debug(msg string, fields map[string]any) { write(slog.LevelDebug, msg, fields) }

func Info(msg string, fields map[string]any) { write(slog.LevelInfo, msg, fields) }

func Warn(msg string, fields map[string]any) { write(slog.LevelWarn, msg, fields) }

func Error(msg string, fields map[string]any) { write(slog.LevelError, msg, fields) }

func write(lvl slog.Level, msg string, fields map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	if !l.Enabled(context.Background(), lvl) {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		args = append(args, slog.Any(k, v))
	}

	l.Log(context.Background(), lvl, msg, args...)
}
