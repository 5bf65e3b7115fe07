package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Level represents log severity
type Level = log.Level

const (
	DEBUG = log.DebugLevel
	INFO  = log.InfoLevel
	WARN  = log.WarnLevel
	ERROR = log.ErrorLevel
)

// ParseLevel parses "debug", "info", "warn" or "error".
func ParseLevel(s string) (Level, error) {
	return log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

// Config for creating the base logger
type Config struct {
	Output   io.Writer
	MinLevel Level
	JSON     bool
}

var (
	base     atomic.Pointer[log.Logger]
	initMu   sync.Mutex
	stdlibMu sync.Once
)

// Init (re)configures the base logger. Component loggers created before Init
// pick up the new configuration on their next call.
func Init(cfg Config) {
	initMu.Lock()
	defer initMu.Unlock()

	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	opts := log.Options{
		Level:           cfg.MinLevel,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000",
	}
	if cfg.JSON {
		opts.Formatter = log.JSONFormatter
		opts.TimeFormat = time.RFC3339Nano
	}

	base.Store(log.NewWithOptions(cfg.Output, opts))

	// Redirect standard log (net/http server errors) to our logger
	stdlibMu.Do(func() {
		stdlog.SetOutput(&logAdapter{})
		stdlog.SetFlags(0)
	})
}

// logAdapter adapts standard log to our logger
type logAdapter struct{}

func (a *logAdapter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	WithComponent("STDLIB").Info("%s", msg)
	return len(p), nil
}

func current() *log.Logger {
	if l := base.Load(); l != nil {
		return l
	}
	Init(Config{
		Output:   os.Stdout,
		MinLevel: INFO,
	})
	return base.Load()
}

// Logger is a component-scoped view over the base logger.
type Logger struct {
	component string
	keyvals   []interface{}
}

// Default returns a logger without a component prefix
func Default() *Logger {
	return &Logger{}
}

// WithComponent creates a logger with a component name
func WithComponent(component string) *Logger {
	return &Logger{component: component}
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	kv := make([]interface{}, 0, len(l.keyvals)+2*len(fields))
	kv = append(kv, l.keyvals...)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{component: l.component, keyvals: kv}
}

func (l *Logger) target() *log.Logger {
	t := current()
	if l.component != "" {
		t = t.WithPrefix(l.component)
	}
	if len(l.keyvals) > 0 {
		t = t.With(l.keyvals...)
	}
	return t
}

// Enabled reports whether messages at level would be emitted.
func (l *Logger) Enabled(level Level) bool {
	return current().GetLevel() <= level
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.target().Debug(format(msg, args))
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.target().Info(format(msg, args))
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.target().Warn(format(msg, args))
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.target().Error(format(msg, args))
}

// ErrorWithStack logs an error with stack trace
func (l *Logger) ErrorWithStack(msg string, err error) {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	l.WithField("error", err.Error()).WithField("stack", string(buf[:n])).Error(msg)
}

func format(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Package-level convenience functions

func Debug(msg string, args ...interface{}) { Default().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { Default().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { Default().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { Default().Error(msg, args...) }
