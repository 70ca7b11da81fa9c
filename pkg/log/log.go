// Package log provides structured logging for leaguemirror built on zerolog.
// It exposes a small package-level API (WithField, WithError, Info, ...) so
// callers never touch the zerolog instance directly.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// InitLogger configures the package logger. When pretty is true the output
// is human-readable console format, otherwise structured JSON.
func InitLogger(w io.Writer, level zerolog.Level, pretty bool) {
	mu.Lock()
	defer mu.Unlock()

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	logger = zerolog.New(w).With().Timestamp().Logger().Level(level)
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// Entry carries accumulated fields toward a terminal logging call.
type Entry struct {
	fields map[string]interface{}
	err    error
}

// WithField starts an entry with a single field.
func WithField(key string, value interface{}) *Entry {
	return (&Entry{fields: make(map[string]interface{})}).WithField(key, value)
}

// WithFields starts an entry with multiple fields.
func WithFields(fields map[string]interface{}) *Entry {
	return (&Entry{fields: make(map[string]interface{})}).WithFields(fields)
}

// WithError starts an entry carrying an error.
func WithError(err error) *Entry {
	return &Entry{fields: make(map[string]interface{}), err: err}
}

// WithField adds a field to the entry.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

// WithFields adds multiple fields to the entry.
func (e *Entry) WithFields(fields map[string]interface{}) *Entry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// WithError attaches an error to the entry.
func (e *Entry) WithError(err error) *Entry {
	e.err = err
	return e
}

func (e *Entry) event(ev *zerolog.Event, msg string) {
	if e.err != nil {
		ev = ev.Err(e.err)
	}
	ev.Fields(e.fields).Msg(msg)
}

// Debug logs the entry at debug level.
func (e *Entry) Debug(msg string) { e.event(current().Debug(), msg) }

// Info logs the entry at info level.
func (e *Entry) Info(msg string) { e.event(current().Info(), msg) }

// Warn logs the entry at warn level.
func (e *Entry) Warn(msg string) { e.event(current().Warn(), msg) }

// Error logs the entry at error level.
func (e *Entry) Error(msg string) { e.event(current().Error(), msg) }

// Debug logs a message at debug level.
func Debug(msg string) { current().Debug().Msg(msg) }

// Info logs a message at info level.
func Info(msg string) { current().Info().Msg(msg) }

// Warn logs a message at warn level.
func Warn(msg string) { current().Warn().Msg(msg) }

// Error logs a message at error level.
func Error(msg string) { current().Error().Msg(msg) }
