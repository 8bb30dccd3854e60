// Package logging wires the process-wide structured logger. The rest of
// the codebase logs through the standard log package with component
// prefixes; Init reroutes that output into slog so console lines and
// HTTP access entries share one format and one rotation policy.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/craftstack/mc-server-manager/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	active  *slog.Logger
	rotator *lumberjack.Logger
)

// Init builds the process logger from the logging section of the config
// file and installs it as the slog default. A second call keeps the
// first configuration.
func Init(cfg config.LoggingConfig) (*slog.Logger, error) {
	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		return active, nil
	}

	sink := io.Writer(os.Stdout)
	if file := strings.TrimSpace(cfg.File); file != "" {
		rotator = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		sink = io.MultiWriter(os.Stdout, rotator)
	}

	opts := &slog.HandlerOptions{Level: levelFromName(cfg.Level), AddSource: true}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(sink, opts)
	} else {
		handler = slog.NewJSONHandler(sink, opts)
	}

	active = slog.New(handler)
	slog.SetDefault(active)

	// Component loggers write through the standard log package; funnel
	// those lines into the structured handler.
	log.SetFlags(0)
	log.SetOutput(redirectWriter{dst: active})

	return active, nil
}

// L returns the process logger. Before Init it hands out a discard
// logger so early callers stay safe.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if active == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return active
}

// Close releases the rotating file handle, if one was opened.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator != nil {
		return rotator.Close()
	}
	return nil
}

// redirectWriter adapts the standard log package's flat output into
// slog records at info level.
type redirectWriter struct {
	dst *slog.Logger
}

func (w redirectWriter) Write(p []byte) (int, error) {
	if line := strings.TrimSpace(string(p)); line != "" {
		w.dst.Info(line)
	}
	return len(p), nil
}

func levelFromName(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
