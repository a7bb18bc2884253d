// README: Structured logger used by every module; thin wrapper over zap.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ILogger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Warning(msg string, fields ...Field)
	With(fields ...Field) ILogger
	Sync() error
}

type logger struct {
	zap *zap.Logger
}

func (l logger) Debug(msg string, fields ...Field) {
	l.zap.Debug(msg, fields...)
}

func (l logger) Info(msg string, fields ...Field) {
	l.zap.Info(msg, fields...)
}

func (l logger) Error(msg string, fields ...Field) {
	l.zap.Error(msg, fields...)
}

func (l logger) Warning(msg string, fields ...Field) {
	l.zap.Warn(msg, fields...)
}

func (l logger) With(fields ...Field) ILogger {
	return logger{zap: l.zap.With(fields...)}
}

func (l logger) Sync() error {
	return l.zap.Sync()
}

// New builds a logger for namespace. development selects zap's console
// encoder; otherwise JSON output is used. level accepts zap level names and
// falls back to info.
func New(namespace, level string, development bool) ILogger {
	return logger{
		zap: newZapLogger(namespace, level, development),
	}
}

// NewNop returns a logger that discards everything; used by tests.
func NewNop() ILogger {
	return logger{zap: zap.NewNop()}
}

func newZapLogger(namespace, level string, development bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.InitialFields = map[string]interface{}{
		"namespace": namespace,
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}
