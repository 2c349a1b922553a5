// Package logging builds the process logger.
//
// The full log goes to a file at the configured level; warnings and errors
// are also echoed to the console so an operator sees problems without
// opening the file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout formats log timestamps, e.g. 19/Oct/2026 14:03:07.
const TimeLayout = "02/Jan/2006 15:04:05"

// Options configures New.
type Options struct {
	// Level is DEBUG, INFO, WARN or ERROR (case-insensitive).
	Level string

	// File receives every entry at Level. It is truncated on open. Empty
	// disables the file sink.
	File string

	// Console receives WARN and above. Defaults to os.Stderr.
	Console io.Writer
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO", "":
		return zapcore.InfoLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(TimeLayout)
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return ec
}

// New returns a logger and a cleanup func that syncs and closes the file.
func New(opt Options) (*zap.Logger, func(), error) {
	level, err := ParseLevel(opt.Level)
	if err != nil {
		return nil, nil, err
	}
	console := opt.Console
	if console == nil {
		console = os.Stderr
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(console)), zap.NewAtomicLevelAt(max(level, zapcore.WarnLevel))),
	}

	var f *os.File
	if opt.File != "" {
		f, err = os.OpenFile(opt.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", opt.File, err)
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(f), zap.NewAtomicLevelAt(level)))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		_ = logger.Sync()
		if f != nil {
			_ = f.Close()
		}
	}
	return logger, cleanup, nil
}
