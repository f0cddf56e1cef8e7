// Package logger provides structured logging for the clock tool
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog and mirrors entries into a ring buffer
type Logger struct {
	slog   *slog.Logger
	level  slog.Level
	format string
	buffer *Buffer
	with   []any // Context from With, repeated on buffered entries
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     io.Writer
	BufferSize int // Recent entries kept in memory, 0 disables
}

// DefaultConfig logs warnings and errors to stderr so stdout stays
// reserved for command output
func DefaultConfig() Config {
	return Config{
		Level:      "warn",
		Format:     "text",
		Output:     os.Stderr,
		BufferSize: 200,
	}
}

// ConfigFromEnv applies LOG_LEVEL and LOG_FORMAT on top of cfg
func ConfigFromEnv(cfg Config) Config {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	return cfg
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger with the given configuration
func New(cfg Config) *Logger {
	level := ParseLevel(cfg.Level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Millisecond resolution is enough to read exchange timing
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(a.Key, a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	var buffer *Buffer
	if cfg.BufferSize > 0 {
		buffer = NewBuffer(cfg.BufferSize)
	}

	return &Logger{
		slog:   slog.New(handler),
		level:  level,
		format: cfg.Format,
		buffer: buffer,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues...)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues...)
}

func (l *Logger) log(level slog.Level, msg string, keysAndValues ...any) {
	l.slog.Log(context.Background(), level, msg, keysAndValues...)
	if level >= l.level {
		l.addToBuffer(level, msg, keysAndValues...)
	}
}

// addToBuffer records an entry that passed the level filter
func (l *Logger) addToBuffer(level slog.Level, msg string, keysAndValues ...any) {
	if l.buffer == nil {
		return
	}

	attrs := make(map[string]any)
	for _, kv := range [][]any{l.with, keysAndValues} {
		for i := 0; i < len(kv)-1; i += 2 {
			if key, ok := kv[i].(string); ok {
				attrs[key] = kv[i+1]
			}
		}
	}

	l.buffer.Add(LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   msg,
		Attrs:     attrs,
	})
}

// With returns a child logger sharing the buffer
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(keysAndValues...),
		level:  l.level,
		format: l.format,
		buffer: l.buffer,
		with:   append(l.with[:len(l.with):len(l.with)], keysAndValues...),
	}
}

// Recent returns up to n buffered entries, oldest first
func (l *Logger) Recent(n int) []LogEntry {
	if l.buffer == nil {
		return nil
	}
	return l.buffer.GetLast(n)
}

// GetSlog returns the underlying slog.Logger
func (l *Logger) GetSlog() *slog.Logger {
	return l.slog
}

var defaultLogger = New(DefaultConfig())

// Init replaces the default logger with one configured from the environment
func Init() {
	SetDefault(New(ConfigFromEnv(DefaultConfig())))
}

// SetDefault sets the default logger
func SetDefault(logger *Logger) {
	defaultLogger = logger
	slog.SetDefault(logger.slog)
}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// Discard returns a logger that drops everything, for tests and quiet runs
func Discard() *Logger {
	return New(Config{Level: "error", Output: io.Discard})
}
