// Package logging configures runtime JSONL logging output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rbright/voxhook/internal/config"
)

const logFileName = "log.jsonl"

// Runtime bundles the configured logger, its level, and the open file handle.
type Runtime struct {
	Logger *slog.Logger
	Level  *slog.LevelVar
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// SetVerbose switches between debug and info level after config load.
func (r Runtime) SetVerbose(verbose bool) {
	if r.Level == nil {
		return
	}
	if verbose {
		r.Level.Set(slog.LevelDebug)
		return
	}
	r.Level.Set(slog.LevelInfo)
}

// New builds a JSONL logger under the voxhook state directory.
func New() (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log file: %w", err)
	}

	rt := newRuntime(f)
	rt.Path = path
	rt.closer = f
	return rt, nil
}

// Discard returns a runtime whose logger drops every record.
func Discard() Runtime {
	return newRuntime(io.Discard)
}

func newRuntime(w io.Writer) Runtime {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return Runtime{
		Logger: slog.New(h).With("pid", os.Getpid()),
		Level:  level,
	}
}

func resolveLogPath() (string, error) {
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, logFileName), nil
}
