// Package logger provides structured logging with PII redaction.
//
// The package-level helpers (Info, Warn, ...) take a message followed by
// alternating key/value pairs. Values whose key mentions an email or a
// subscriber are masked with RedactEmail before they reach the output.
package logger

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
// Unknown names fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger wraps a zap logger and redacts PII from string fields.
type Logger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

var (
	mu            sync.RWMutex
	defaultLogger = mustNew("production", INFO)
)

// New builds a logger for the given environment. "production" emits JSON,
// anything else emits human-readable console output.
func New(environment string, level Level) (*Logger, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	zl, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{zl: zl, level: cfg.Level}, nil
}

// NewWithCore builds a logger on top of an existing zap core. Used by tests
// to capture output with zaptest/observer.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{
		zl:    zap.New(core, zap.AddCallerSkip(2)),
		level: zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

func mustNew(environment string, level Level) *Logger {
	l, err := New(environment, level)
	if err != nil {
		return &Logger{zl: zap.NewNop(), level: zap.NewAtomicLevel()}
	}
	return l
}

// SetDefault replaces the package-level logger.
func SetDefault(l *Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Sync flushes buffered entries of the default logger.
func Sync() error { return current().zl.Sync() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { current().log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { current().log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { current().log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { current().log(ERROR, msg, fields...) }

// Entry is a logger bound to request-scoped fields.
type Entry struct {
	fields []interface{}
}

// With returns an Entry carrying the request id stored in ctx by chi's
// RequestID middleware, if any.
func With(ctx context.Context, fields ...interface{}) *Entry {
	if id := middleware.GetReqID(ctx); id != "" {
		fields = append([]interface{}{"request_id", id}, fields...)
	}
	return &Entry{fields: fields}
}

func (e *Entry) Debug(msg string, fields ...interface{}) {
	current().log(DEBUG, msg, append(e.fields[:len(e.fields):len(e.fields)], fields...)...)
}

func (e *Entry) Info(msg string, fields ...interface{}) {
	current().log(INFO, msg, append(e.fields[:len(e.fields):len(e.fields)], fields...)...)
}

func (e *Entry) Warn(msg string, fields ...interface{}) {
	current().log(WARN, msg, append(e.fields[:len(e.fields):len(e.fields)], fields...)...)
}

func (e *Entry) Error(msg string, fields ...interface{}) {
	current().log(ERROR, msg, append(e.fields[:len(e.fields):len(e.fields)], fields...)...)
}

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	if !l.level.Enabled(level.zapLevel()) {
		return
	}

	zf := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fields[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		if s, ok := val.(string); ok {
			val = redactPIIValue(key, s)
		}
		zf = append(zf, zap.Any(key, val))
	}

	switch level {
	case DEBUG:
		l.zl.Debug(msg, zf...)
	case WARN:
		l.zl.Warn(msg, zf...)
	case ERROR:
		l.zl.Error(msg, zf...)
	default:
		l.zl.Info(msg, zf...)
	}
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "subscriber") {
		return RedactEmail(val)
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
