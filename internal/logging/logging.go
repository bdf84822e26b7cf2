// Package logging configures the process-wide zap logger and hands out
// component-scoped children of it.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level, encoding and optional rotating file of the
// process logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // "console" or "json"

	// File, when set, receives a JSON copy of every entry.
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Init replaces zap's global logger. If w is empty, os.Stderr is used.
// An unparsable level falls back to info.
func Init(opts Options, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(opts.Format), zapcore.AddSync(writer), level),
	}
	if opts.File != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), file, level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
	zap.ReplaceGlobals(logger)
}

// New returns a logger with a "component" field for module-scoped logging.
func New(component string) *zap.Logger {
	return zap.L().With(zap.String("component", component))
}

// Sync flushes buffered entries of the global logger.
func Sync() {
	_ = zap.L().Sync()
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(cfg)
}
