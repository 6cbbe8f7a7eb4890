package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a sugared zap logger with the service name attached.
type Logger struct {
	*zap.SugaredLogger
}

// New creates a logger for the given service. LOG_LEVEL controls verbosity
// (debug, info, warn, error); output is JSON on stdout.
func New(service string) *Logger {
	level := zapcore.InfoLevel
	if raw, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		level,
	)

	l := zap.New(core, zap.AddCaller())
	return &Logger{l.Sugar().With("service", service)}
}

// Sync flushes buffered log entries. Call on shutdown.
func (l *Logger) SyncAll() {
	_ = l.SugaredLogger.Sync()
}
