package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger that components depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// state holds the module loggers and their level vars. A module's logger is
// created once and never replaced; Initialize and SetModuleLevel only move
// its level var.
type state struct {
	mu          sync.RWMutex
	cfg         Config
	initialized bool
	loggers     map[string]*slog.Logger
	levels      map[string]*slog.LevelVar
	global      slog.LevelVar
	buffer      *RingBuffer
	callback    LogCallback
}

var std = newState()

func newState() *state {
	return &state{
		loggers: make(map[string]*slog.Logger),
		levels:  make(map[string]*slog.LevelVar),
	}
}

func (s *state) sinks() (*RingBuffer, LogCallback) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer, s.callback
}

// levelFor resolves the level of module. Callers hold s.mu.
func (s *state) levelFor(module string) slog.Level {
	if !s.initialized {
		return slog.LevelInfo
	}
	if l, ok := parseLevel(s.cfg.Modules[module]); ok {
		return l
	}
	if l, ok := parseLevel(s.cfg.Level); ok {
		return l
	}
	return slog.LevelInfo
}

// Initialize applies config. It may be called more than once; loggers handed
// out earlier pick up the new levels.
func Initialize(config Config) {
	std.mu.Lock()
	defer std.mu.Unlock()

	std.cfg = config
	std.initialized = true
	if std.buffer == nil {
		std.buffer = NewRingBuffer(defaultBufferSize)
	}

	global, ok := parseLevel(config.Level)
	if !ok {
		global = slog.LevelInfo
	}
	std.global.Set(global)
	for module, lv := range std.levels {
		lv.Set(std.levelFor(module))
	}

	slog.SetDefault(slog.New(createHandler(config.Format, &std.global)))
}

// GetBuffer returns the ring buffer of recent entries, or nil before
// Initialize.
func GetBuffer() *RingBuffer {
	buffer, _ := std.sinks()
	return buffer
}

// SetLogCallback registers fn to receive every captured entry. The daemon
// uses it to publish entries on the event bus.
func SetLogCallback(fn LogCallback) {
	std.mu.Lock()
	std.callback = fn
	std.mu.Unlock()
}

// SetModuleLevel changes one module's level at runtime. It reports false for
// an unknown level name.
func SetModuleLevel(module, level string) bool {
	l, ok := parseLevel(level)
	if !ok {
		return false
	}
	GetLogger(module)

	std.mu.Lock()
	std.levels[module].Set(l)
	std.mu.Unlock()
	return true
}

// GetLogger returns the logger for module, creating it on first use. Every
// record it emits carries a "module" attribute.
func GetLogger(module string) *slog.Logger {
	std.mu.RLock()
	logger, ok := std.loggers[module]
	std.mu.RUnlock()
	if ok {
		return logger
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if logger, ok := std.loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(std.levelFor(module))
	format := "text"
	if std.initialized {
		format = std.cfg.Format
	}

	logger = slog.New(createHandler(format, lv)).With("module", module)
	std.loggers[module] = logger
	std.levels[module] = lv
	return logger
}

// createHandler builds the output chain: stdout when something is attached
// to it, the journal when journald is running, and always the ring buffer.
func createHandler(format string, level slog.Leveler) slog.Handler {
	handlers := make([]slog.Handler, 0, 3)
	if stdoutAttached() {
		opts := &slog.HandlerOptions{Level: level}
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAttached reports whether stdout goes to a terminal, pipe, socket or
// regular file. Under systemd with StandardOutput=null it does not.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel accepts debug, info, warn (or warning) and error, in any case.
func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}
