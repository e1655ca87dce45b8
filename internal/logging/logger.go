// Package logging provides the shared structured logger. Components receive
// a *slog.Logger scoped with their component name; the CLI configures the
// global handler once at startup.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Config holds logger configuration.
type Config struct {
	Level      slog.Level
	JSONFormat bool      // JSON handler instead of text
	AddSource  bool      // include source file and line
	Output     io.Writer // defaults to stderr
}

var (
	mu     sync.Mutex
	global *slog.Logger
)

// Initialize configures the global logger. Safe to call more than once;
// the last configuration wins.
func Initialize(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)

	mu.Lock()
	global = logger
	mu.Unlock()

	slog.SetDefault(logger)
	return logger
}

// Logger returns the configured global logger, falling back to slog's
// default when Initialize has not been called.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		return global
	}
	return slog.Default()
}

// ForComponent returns a logger tagged with a component name.
func ForComponent(name string) *slog.Logger {
	return Logger().With("component", name)
}

// DefaultConfig returns the standard configuration: human-readable text in
// debug mode, JSON otherwise.
func DefaultConfig(debug bool) Config {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return Config{
		Level:      level,
		JSONFormat: !debug,
		AddSource:  debug,
	}
}
