// internal/logging/logger.go
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger whose methods take a context. Trace and span ids,
// the request id and the originating surface are read from ctx and attached
// to every entry.
type Logger struct {
	zap    *zap.Logger
	config *Config
}

// Option customizes NewLogger.
type Option func(*options)

type options struct {
	writer io.Writer
}

// WithWriter sends console output to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writer = w
		}
	}
}

// NewLogger builds a Logger from cfg. A nil otelProvider disables the
// OTel bridge even when cfg.Output.OTEL is set.
func NewLogger(cfg *Config, otelProvider log.LoggerProvider, opts ...Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	core, err := newDualCore(cfg, otelProvider, o.writer)
	if err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	var zapOpts []zap.Option
	if cfg.Caller.Enabled {
		// +1 for Logger.log.
		zapOpts = append(zapOpts, zap.AddCaller(), zap.AddCallerSkip(cfg.Caller.Skip+1))
	}
	if cfg.Stacktrace.Level != 0 {
		zapOpts = append(zapOpts, zap.AddStacktrace(cfg.Stacktrace.Level))
	}

	base := make([]zap.Field, 0, len(cfg.Fields))
	for k, v := range cfg.Fields {
		base = append(base, zap.String(k, v))
	}

	return &Logger{
		zap:    zap.New(core, zapOpts...).With(base...),
		config: cfg,
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// log checks the level before collecting context fields.
func (l *Logger) log(ctx context.Context, lvl zapcore.Level, msg string, fields []zap.Field) {
	ce := l.zap.Check(lvl, msg)
	if ce == nil {
		return
	}
	ce.Write(append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, TraceLevel, msg, fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...), config: l.config}
}

// Named returns a child logger whose name is suffixed with name, e.g. "history".
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name), config: l.config}
}

func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes buffered entries. Terminals reject fsync with EINVAL or
// ENOTTY, which is ignored.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	if isStdioSyncError(err) {
		return nil
	}
	return err
}

func isStdioSyncError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY)
}
