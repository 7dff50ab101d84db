package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name (case-insensitive). "warning" is accepted as warn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Context keys used as structured field names across components.
const (
	ComponentKey = "component"
	ErrorKey     = "error"
)

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

func Str(key, v string) Field               { return Field{Key: key, Value: v} }
func Int(key string, v int) Field           { return Field{Key: key, Value: v} }
func Int64(key string, v int64) Field       { return Field{Key: key, Value: v} }
func Uint64(key string, v uint64) Field     { return Field{Key: key, Value: v} }
func Bool(key string, v bool) Field         { return Field{Key: key, Value: v} }
func Dur(key string, v time.Duration) Field { return Field{Key: key, Value: v} }
func Any(key string, v interface{}) Field   { return Field{Key: key, Value: v} }

// Err attaches an error under the "error" key.
func Err(err error) Field { return Field{Key: ErrorKey, Value: err} }

// Component tags an entry with the emitting component.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Logger defines the core logging interface used by multiflow components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With adds multiple fields to the logger.
	With(fields ...Field) Logger

	// WithComponent tags logs with a component name
	WithComponent(component string) Logger

	// WithError attaches err to every entry of the returned logger.
	WithError(err error) Logger

	// SetLevel sets the minimum log level. The level is shared with every
	// logger derived through With.
	SetLevel(level Level)

	// GetLevel returns the current minimum log level
	GetLevel() Level

	// Sync flushes buffered entries.
	Sync() error
}

type options struct {
	level  Level
	format Format
	out    io.Writer
}

// LoggerOption is a function that configures a logger.
type LoggerOption func(*options)

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(o *options) { o.level = level }
}

// WithFormat sets the output encoding.
func WithFormat(format Format) LoggerOption {
	return func(o *options) { o.format = format }
}

// WithOutput sets the destination writer. Defaults to stderr.
func WithOutput(w io.Writer) LoggerOption {
	return func(o *options) { o.out = w }
}

// NewLogger creates a new logger with the given options.
func NewLogger(opts ...LoggerOption) Logger {
	o := options{level: InfoLevel, format: FormatText, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	return newZapLogger(o)
}

// Config is a declarative logger configuration.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ApplyConfig builds a logger from cfg.
func ApplyConfig(cfg *Config, opts ...LoggerOption) (Logger, error) {
	if cfg == nil {
		return NewLogger(opts...), nil
	}
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var format Format
	switch strings.ToLower(cfg.Format) {
	case "", "text", "console":
		format = FormatText
	case "json":
		format = FormatJSON
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	all := append([]LoggerOption{WithLevel(lvl), WithFormat(format)}, opts...)
	return NewLogger(all...), nil
}
