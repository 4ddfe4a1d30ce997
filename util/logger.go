// Package util provides low-level helpers shared by all other packages.
package util

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages through zap.  The verbosity gate is
// ours; zap only formats and writes.
type Logger struct {
	level LogLevel

	mu         sync.Mutex // guards rebuilds
	output     io.Writer
	timestamps bool // if true, prepend a time column
	file       *lumberjack.Logger

	sugar atomic.Pointer[zap.SugaredLogger]
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
	}
	l.rebuild()
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	l.timestamps = on
	l.mu.Unlock()
	l.rebuild()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.output = w
	l.mu.Unlock()
	l.rebuild()
}

// SetFile mirrors every message into a size-rotated log file.  An empty
// path turns the mirror off.
func (l *Logger) SetFile(path string, maxSizeMB int) {
	l.mu.Lock()
	if l.file != nil {
		l.file.Close() //nolint:errcheck
		l.file = nil
	}
	if path != "" {
		l.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    max(maxSizeMB, 1),
			MaxBackups: 3,
			MaxAge:     28,
		}
	}
	l.mu.Unlock()
	l.rebuild()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.sugar.Load().Infof(format, args...)
	}
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.sugar.Load().Warnf(format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Emitted at zap's info level.
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.sugar.Load().Infof(format, args...)
	}
}

// Debug prints when verbosity ≥ 3.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.sugar.Load().Debugf(format, args...)
	}
}

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Load().Errorf(format, args...)
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.sugar.Load().Sync()
}

func (l *Logger) rebuild() {
	l.mu.Lock()
	defer l.mu.Unlock()

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.CallerKey = zapcore.OmitKey
	enc.NameKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey
	if l.timestamps {
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	} else {
		enc.TimeKey = zapcore.OmitKey
	}

	// The verbosity gate above decides; the cores accept everything.
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(l.output), zapcore.DebugLevel),
	}
	if l.file != nil {
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(l.file), zapcore.DebugLevel))
	}

	l.sugar.Store(zap.New(zapcore.NewTee(cores...)).Sugar())
}
