// Package logger is a process-wide zap logger that tags every line with the
// correlation ids found in the request context.
package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"judgeboard/pkg/utils/contextkey"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *Logger

type Logger struct {
	zap *zap.Logger
}

// Config selects level, encoding and sinks. Paths may be "stdout", "stderr"
// or a file that is appended to.
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or console
	OutputPath string `yaml:"outputPath"`
	ErrorPath  string `yaml:"errorPath"`
}

// Init replaces the global logger.
func Init(cfg Config) error {
	l, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

func NewLogger(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	out, err := openSink(cfg.OutputPath, "stdout")
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}
	errOut, err := openSink(cfg.ErrorPath, "stderr")
	if err != nil {
		return nil, fmt.Errorf("open error log output: %w", err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), out, level)
	return &Logger{zap: zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(errOut),
	)}, nil
}

func newEncoder(format string) zapcore.Encoder {
	enc := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    "func",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "json" {
		return zapcore.NewJSONEncoder(enc)
	}
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(enc)
}

func openSink(path, fallback string) (zapcore.WriteSyncer, error) {
	if path == "" {
		path = fallback
	}
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(f), nil
}

func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// WithContext returns the logger tagged with ctx's trace, request and user ids.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.zap
	}
	var fields []zap.Field
	for _, key := range []contextkey.Key{contextkey.TraceID, contextkey.RequestID, contextkey.UserID} {
		if v := ctx.Value(key); v != nil {
			fields = append(fields, zap.String(string(key), fmt.Sprint(v)))
		}
	}
	return l.zap.With(fields...)
}

// Info, Warn and Error are no-ops until Init or SetLogger runs.

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	if globalLogger != nil {
		globalLogger.WithContext(ctx).Info(msg, fields...)
	}
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	if globalLogger != nil {
		globalLogger.WithContext(ctx).Warn(msg, fields...)
	}
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	if globalLogger != nil {
		globalLogger.WithContext(ctx).Error(msg, fields...)
	}
}

// Sync flushes the global logger.
func Sync() error {
	if globalLogger == nil {
		return nil
	}
	return globalLogger.Sync()
}

// SetLogger installs l as the global logger; nil disables logging.
func SetLogger(l *zap.Logger) {
	if l == nil {
		globalLogger = nil
		return
	}
	globalLogger = &Logger{zap: l}
}
