// Package logging provides the structured, levelled logger used across the
// proxy. It wraps github.com/rs/zerolog so every log line is a single JSON
// object; the Request and Denied records carry the per-request field set
// {client_ip, method, path, latency_sec, status_code, message}.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thread-safe, levelled logger backed by zerolog.
//
// Thread-safety: zerolog.Logger is an immutable value; SetLevel replaces it
// under a mutex so that concurrent Info/Error/Request calls never observe
// a half-updated level.
type Logger struct {
	mu sync.RWMutex
	z  zerolog.Logger
}

// New creates a Logger that writes newline-delimited JSON to w at the given
// minimum level. Pass os.Stderr in production; tests typically pass a
// bytes.Buffer.
func New(w io.Writer, level zerolog.Level) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return &Logger{z: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Default returns a Logger writing to stderr at info level.
func Default() *Logger {
	return New(os.Stderr, zerolog.InfoLevel)
}

// SetLevel changes the minimum log level at runtime. Safe for concurrent use.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.mu.Lock()
	l.z = l.z.Level(level)
	l.mu.Unlock()
}

func (l *Logger) logger() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.z
}

// Info logs a message at info level.
func (l *Logger) Info(msg string) {
	z := l.logger()
	z.Info().Msg(msg)
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	z := l.logger()
	z.Info().Msgf(format, args...)
}

// Error logs a message at error level.
func (l *Logger) Error(msg string) {
	z := l.logger()
	z.Error().Msg(msg)
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	z := l.logger()
	z.Error().Msgf(format, args...)
}

// RequestEvent is the field set carried on every terminal request log
// record.
type RequestEvent struct {
	ClientIP   string
	Method     string
	Path       string
	LatencySec float64
	StatusCode int
}

// Request logs a terminal request record at info level with
// message:"request".
func (l *Logger) Request(ev RequestEvent) {
	z := l.logger()
	z.Info().
		Str("client_ip", ev.ClientIP).
		Str("method", ev.Method).
		Str("path", ev.Path).
		Float64("latency_sec", ev.LatencySec).
		Int("status_code", ev.StatusCode).
		Msg("request")
}

// Denied logs a warn-level record for a request that a predicate rejected,
// with the denial reason as both a field and the message.
func (l *Logger) Denied(ev RequestEvent, reason string) {
	z := l.logger()
	z.Warn().
		Str("client_ip", ev.ClientIP).
		Str("method", ev.Method).
		Str("path", ev.Path).
		Float64("latency_sec", ev.LatencySec).
		Int("status_code", ev.StatusCode).
		Str("reason", reason).
		Msg(reason)
}
