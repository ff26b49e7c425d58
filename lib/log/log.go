// Package log wraps a zap logger shared by the whole service. Until Bootstrap is called the logger is a no-op, so
// packages and tests can log without any setup.
package log

import (
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tarancss/addrprof/lib/config"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

func callerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(strings.Join([]string{caller.TrimmedPath(), runtime.FuncForPC(caller.PC).Name()}, ":"))
}

func newLoggerConfig(c config.LoggerConfig) (loggerConfig zap.Config) {
	if c.Debug {
		loggerConfig = zap.NewDevelopmentConfig()
	} else {
		loggerConfig = zap.NewProductionConfig()
	}

	if c.File != "" {
		loggerConfig.OutputPaths = []string{c.File}
	}

	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	loggerConfig.EncoderConfig.EncodeCaller = callerEncoder
	loggerConfig.Level = zap.NewAtomicLevelAt(parseLevel(c.Level))

	return
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Bootstrap builds the service logger from the configuration and installs it.
func Bootstrap(c config.LoggerConfig) error {
	loggerConfig := newLoggerConfig(c)
	if !c.Debug {
		loggerConfig.DisableCaller = true
	} else {
		loggerConfig.Development = true
	}

	l, err := loggerConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return errors.Wrap(err, "error of init logger")
	}

	logger.Store(l)

	return nil
}

// Use installs l as the service logger (ie. zaptest loggers in tests).
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}

	logger.Store(l)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = logger.Load().Sync()
}

func Info(msg string, args ...zap.Field) {
	logger.Load().Info(msg, args...)
}

func Debug(msg string, args ...zap.Field) {
	logger.Load().Debug(msg, args...)
}

func Warn(msg string, args ...zap.Field) {
	logger.Load().Warn(msg, args...)
}

func Error(msg string, args ...zap.Field) {
	logger.Load().Error(msg, args...)
}

// Errore logs err at error level.
func Errore(msg string, err error) {
	logger.Load().Error(msg, zap.Error(err))
}

// Warne logs err at warn level.
func Warne(msg string, err error) {
	logger.Load().Warn(msg, zap.Error(err))
}
