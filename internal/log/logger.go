// Package log is the slog setup shared by the server, the scheduler and the
// mail worker: one handler per process, loggers scoped by component.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger tagged with the component that owns it.
type Logger struct {
	*slog.Logger
	component string
	// root is the logger before the component attribute was attached.
	root *slog.Logger
}

type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	// Handler overrides Format and Output when set.
	Handler slog.Handler
	Output  io.Writer // default os.Stdout
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Component: ComponentApp,
	}
}

// New builds a logger. The component is attached once as an attribute.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if strings.EqualFold(config.Format, "json") {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}

	base := slog.New(handler)
	root := base
	if config.Component != "" {
		base = base.With(FieldComponent, config.Component)
	}
	return &Logger{Logger: base, component: config.Component, root: root}
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component, root: l.root}
}

// WithComponent derives a logger for another component.
func (l *Logger) WithComponent(component string) *Logger {
	if component == l.component {
		return l
	}
	base := l.root
	if base == nil {
		base = l.Logger
	}
	return &Logger{Logger: base.With(FieldComponent, component), component: component, root: base}
}

func (l *Logger) Component() string {
	return l.component
}

// SetDefault makes logger's handler the process-wide slog default. The
// default carries no component; callers logging through slog directly name
// their own.
func SetDefault(logger *Logger) {
	if logger.root != nil {
		slog.SetDefault(logger.root)
		return
	}
	slog.SetDefault(logger.Logger)
}
