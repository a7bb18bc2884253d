package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Field = zapcore.Field

var (
	Int      = zap.Int
	Int64    = zap.Int64
	String   = zap.String
	Bool     = zap.Bool
	Time     = zap.Time
	Error    = zap.Error
	Any      = zap.Any
	Stringer = zap.Stringer
	Duration = zap.Duration
)
