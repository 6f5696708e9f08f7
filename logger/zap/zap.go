// Package zap builds the application's zap loggers: a general
// structured logger rotated via lumberjack, and a gorm logger adapter
// over a given zap logger. The request-access logger lives in package
// logger and writes through the global zap logger. Grounded on the
// teacher's logger/zap/zap.go encoder/writer/level construction,
// trimmed from its dozen per-subsystem loggers down to the handful
// crudgate actually needs.
package zap

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/forbearing/crudgate/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// App is the general-purpose process logger, set by Init.
var App *zap.Logger

// Init builds App from config.Logging and returns it.
func Init(cfg config.Logging) (*zap.Logger, error) {
	App = New(cfg, "crudgate.log")
	return App, nil
}

// New builds a *zap.Logger writing JSON to logDir/filename, rotated
// by size per cfg.RotationSize/MaxFiles, or to stdout when
// cfg.LogDir is empty.
func New(cfg config.Logging, filename string) *zap.Logger {
	level := parseLevel(cfg.LogLevel)
	return zap.New(
		zapcore.NewCore(newEncoder(), newWriter(cfg, filename), level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

func newWriter(cfg config.Logging, filename string) zapcore.WriteSyncer {
	if strings.TrimSpace(cfg.LogDir) == "" {
		return zapcore.AddSync(os.Stdout)
	}
	maxSizeMB := int(cfg.RotationSize / (1024 * 1024))
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, filename),
		MaxSize:    maxSizeMB,
		MaxBackups: cfg.MaxFiles,
		LocalTime:  true,
		Compress:   true,
	})
}

func newEncoder() zapcore.Encoder {
	encConfig := zap.NewProductionEncoderConfig()
	encConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encConfig.EncodeDuration = zapcore.MillisDurationEncoder
	return zapcore.NewJSONEncoder(encConfig)
}

func parseLevel(raw string) zapcore.Level {
	if raw == "" {
		return zapcore.InfoLevel
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Sync flushes any buffered log entries; called on graceful shutdown.
func Sync() {
	if App != nil {
		_ = App.Sync()
	}
}
