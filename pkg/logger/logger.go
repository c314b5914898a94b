// Package logger provides a simple, clean logging interface.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the logging interface.
type Logger interface {
	// Context-aware variants
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Fatal(ctx context.Context, msg string, fields ...Field)

	Named(name string) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// Field constructors.
func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field            { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field        { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field              { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Any(key string, val interface{}) Field        { return Field{Key: key, Value: val} }
func Error(err error) Field                        { return Field{Key: "error", Value: err} }

type requestIDKey struct{}

// WithRequestID returns a context whose log lines carry the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// zapLogger implements Logger on top of zap.
type zapLogger struct {
	l *zap.Logger
}

func (z *zapLogger) Named(name string) Logger {
	return &zapLogger{l: z.l.Named(name)}
}

func (z *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	z.l.Info(msg, convertFields(ctx, fields)...)
}

func (z *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	z.l.Error(msg, convertFields(ctx, fields)...)
}

func (z *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	z.l.Debug(msg, convertFields(ctx, fields)...)
}

func (z *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	z.l.Warn(msg, convertFields(ctx, fields)...)
}

func (z *zapLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	z.l.Fatal(msg, convertFields(ctx, fields)...)
}

// convertFields converts our Field type to zap fields, appending the request
// id carried by ctx.
func convertFields(ctx context.Context, fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	if id := RequestID(ctx); id != "" {
		out = append(out, zap.String("request_id", id))
	}
	return out
}

var (
	global Logger
	base   *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init initializes the global logger writing to stdout.
func Init() error {
	return InitWithWriter(os.Stdout)
}

// InitWithWriter initializes the global logger writing to w.
func InitWithWriter(w io.Writer) error {
	if w == nil {
		return errors.New("logger: nil writer")
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), level)
	base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	global = &zapLogger{l: base}
	return nil
}

// Get returns the global logger.
func Get() Logger {
	if global == nil {
		// The logger should be explicitly initialized by the application
		panic("logger not initialized. Call logger.Init() first")
	}
	return global
}

// Named creates a named logger.
func Named(name string) Logger {
	return Get().Named(name)
}

// Sync flushes buffered log entries. Sync errors from terminals and pipes
// that do not support fsync are ignored.
func Sync() error {
	if base == nil {
		return nil
	}
	err := base.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return fmt.Errorf("logger sync: %w", err)
}

// SetLevel updates the current logging level for the global logger.
func SetLevel(l zapcore.Level) { level.SetLevel(l) }

// SetLevelString parses and sets the logging level.
// Accepts: debug, info, warn/warning, error (case-insensitive).
func SetLevelString(lvl string) error {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		SetLevel(zapcore.DebugLevel)
	case "", "info":
		SetLevel(zapcore.InfoLevel)
	case "warn", "warning":
		SetLevel(zapcore.WarnLevel)
	case "error":
		SetLevel(zapcore.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level: %s", lvl)
	}
	return nil
}

// Level reports the current global level as a lower-case string.
func Level() string { return level.Level().String() }
