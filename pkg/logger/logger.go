package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin structured logger over zerolog. The zero value is not
// usable; build one with New, NewWriter or Nop.
type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr or a file path
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	zl := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", "sessionlens").
		CallerWithSkipFrameCount(3).
		Logger()
	return &Logger{zl: zl}, nil
}

func openOutput(dst string) (io.Writer, error) {
	switch dst {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// NewWriter logs JSON to w without timestamps, for tests asserting on output.
func NewWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(lvl)}
}

func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that stamps fields on every event.
func (l *Logger) With(fields ...Field) *Logger {
	c := l.zl.With()
	for _, f := range fields {
		c = f.onContext(c)
	}
	return &Logger{zl: c.Logger()}
}

func (l *Logger) Debug(msg string, fields ...Field) { write(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { write(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) { write(l.zl.Warn(), msg, fields) }

func (l *Logger) Error(msg string, fields ...Field) { write(l.zl.Error(), msg, fields) }

func write(e *zerolog.Event, msg string, fields []Field) {
	// nil when the level is disabled
	if e == nil {
		return
	}
	for _, f := range fields {
		f.onEvent(e)
	}
	e.Msg(msg)
}

// Field is one typed key/value pair.
type Field struct {
	onEvent   func(*zerolog.Event)
	onContext func(zerolog.Context) zerolog.Context
}

func String(key, value string) Field {
	return Field{
		onEvent:   func(e *zerolog.Event) { e.Str(key, value) },
		onContext: func(c zerolog.Context) zerolog.Context { return c.Str(key, value) },
	}
}

func Strings(key string, value []string) Field {
	return Field{
		onEvent:   func(e *zerolog.Event) { e.Strs(key, value) },
		onContext: func(c zerolog.Context) zerolog.Context { return c.Strs(key, value) },
	}
}

func Int(key string, value int) Field {
	return Field{
		onEvent:   func(e *zerolog.Event) { e.Int(key, value) },
		onContext: func(c zerolog.Context) zerolog.Context { return c.Int(key, value) },
	}
}

func Int64(key string, value int64) Field {
	return Field{
		onEvent:   func(e *zerolog.Event) { e.Int64(key, value) },
		onContext: func(c zerolog.Context) zerolog.Context { return c.Int64(key, value) },
	}
}

func Float(key string, value float64) Field {
	return Field{
		onEvent:   func(e *zerolog.Event) { e.Float64(key, value) },
		onContext: func(c zerolog.Context) zerolog.Context { return c.Float64(key, value) },
	}
}

func Bool(key string, value bool) Field {
	return Field{
		onEvent:   func(e *zerolog.Event) { e.Bool(key, value) },
		onContext: func(c zerolog.Context) zerolog.Context { return c.Bool(key, value) },
	}
}

// Duration is rendered in milliseconds.
func Duration(key string, value time.Duration) Field {
	ms := float64(value) / float64(time.Millisecond)
	return Float(key, ms)
}

// Error logs err under "error". A nil error is skipped.
func Error(err error) Field {
	return Field{
		onEvent:   func(e *zerolog.Event) { e.Err(err) },
		onContext: func(c zerolog.Context) zerolog.Context { return c.Err(err) },
	}
}

func Any(key string, value any) Field {
	return Field{
		onEvent:   func(e *zerolog.Event) { e.Interface(key, value) },
		onContext: func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) },
	}
}
