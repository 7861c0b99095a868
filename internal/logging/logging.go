// Package logging builds the process logger: JSON lines into a rotated file, optionally
// mirrored to a console writer.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// File is the log file path. Empty disables the file core.
	File string
	// Console, when set, receives human-readable lines.
	Console io.Writer
	Verbose bool
}

// New returns a logger and a flush func to call before exit. Flush syncs and closes the
// log file; it is safe to call more than once.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	var cores []zapcore.Core
	var rotator *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, err
		}
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.MessageKey = "message"
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}
	if opts.Console != nil {
		consoleConfig := zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(zapcore.AddSync(opts.Console)), level))
	}
	if len(cores) == 0 {
		return Nop(), func() {}, nil
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	var once sync.Once
	flush := func() {
		once.Do(func() {
			_ = l.Sync()
			if rotator != nil {
				_ = rotator.Close()
			}
		})
	}
	return l, flush, nil
}

// Nop discards everything.
func Nop() *zap.Logger { return zap.NewNop() }
