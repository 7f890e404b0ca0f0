// Package log provides the structured key/value logger used across buildbridge.
//
// Calls take a message followed by alternating key/value pairs:
//
//	log.Info("uploading artifact", "target", target, "key", key)
//
// The package-level functions write through a shared default logger that is
// configured once at startup with Init.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level names accepted by Init.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Options configures the default logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Format is "text" (default) or "json".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Logger is a logger with a fixed set of key/value fields attached.
type Logger struct {
	entry *logrus.Entry
}

var (
	mu  sync.RWMutex
	std = newLogger(Options{})
)

func newLogger(opts Options) *Logger {
	l := logrus.New()
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return &Logger{entry: logrus.NewEntry(l)}
}

// Init replaces the default logger. It returns an error for an unknown level,
// in which case the default logger is still replaced using level info.
func Init(opts Options) error {
	var err error
	if opts.Level != "" {
		if _, perr := logrus.ParseLevel(strings.ToLower(opts.Level)); perr != nil {
			err = fmt.Errorf("invalid log level %q: %w", opts.Level, perr)
		}
	}
	l := newLogger(opts)
	mu.Lock()
	std = l
	mu.Unlock()
	return err
}

// Default returns the shared logger.
func Default() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// With returns a child of the default logger carrying the given fields.
func With(kv ...any) *Logger {
	return Default().With(kv...)
}

// With returns a child logger carrying the given fields in addition to l's.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{entry: l.entry.WithFields(fields(kv))}
}

func (l *Logger) Debug(msg string, kv ...any) { l.entry.WithFields(fields(kv)).Debug(msg) }
func (l *Logger) Info(msg string, kv ...any)  { l.entry.WithFields(fields(kv)).Info(msg) }
func (l *Logger) Warn(msg string, kv ...any)  { l.entry.WithFields(fields(kv)).Warn(msg) }
func (l *Logger) Error(msg string, kv ...any) { l.entry.WithFields(fields(kv)).Error(msg) }

func Debug(msg string, kv ...any) { Default().Debug(msg, kv...) }
func Info(msg string, kv ...any)  { Default().Info(msg, kv...) }
func Warn(msg string, kv ...any)  { Default().Warn(msg, kv...) }
func Error(msg string, kv ...any) { Default().Error(msg, kv...) }

// fields converts alternating key/value pairs into logrus fields.
// A trailing key without a value is recorded under "!BADKEY".
func fields(kv []any) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			f["!BADKEY"] = kv[i]
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		val := kv[i+1]
		if err, ok := val.(error); ok && err != nil {
			val = err.Error()
		}
		f[key] = val
	}
	return f
}
