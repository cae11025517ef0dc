// Package logger provides the process-wide structured logger.
//
// A single zap logger backs every package. The level is held in an
// AtomicLevel so operators can raise or lower verbosity at runtime through
// the handler mounted at /log/level.
//
// Import Path: hireguard.io/atssync/internal/pkg/logger
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global      *zap.Logger
	atomicLevel = zap.NewAtomicLevel()
	once        sync.Once
	nop         = zap.NewNop()
)

// Init builds the global logger. It is safe to call more than once; only the
// first call takes effect.
//
//	level:  debug, info, warn, error
//	format: json or console
func Init(level, format string) error {
	var initErr error
	once.Do(func() {
		if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", level, err)
			return
		}

		var cfg zap.Config
		switch format {
		case "console":
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		default:
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "ts"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		cfg.Level = atomicLevel

		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global = l.With(zap.String("service", "atssync"))
	})
	return initErr
}

// SetLevel changes the log level without a restart.
func SetLevel(level string) error {
	return atomicLevel.UnmarshalText([]byte(level))
}

// GetLevel returns the current log level.
func GetLevel() zapcore.Level {
	return atomicLevel.Level()
}

// L returns the global logger. Before Init it returns a no-op logger so
// library packages can log from tests without wiring.
func L() *zap.Logger {
	if global == nil {
		return nop
	}
	return global
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal logs at FatalLevel then calls os.Exit(1).
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// With creates a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// HTTPHandler exposes the AtomicLevel, which implements http.Handler.
//
//	GET /log/level                          -> {"level":"info"}
//	PUT /log/level -d '{"level":"debug"}'   -> changes level
func HTTPHandler() *zap.AtomicLevel {
	return &atomicLevel
}

// Sync flushes any buffered log entries.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
