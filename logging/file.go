package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes a rotating log file written alongside stdout.
type FileConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// NewFileLogger returns a logger at the given level that writes console output to stdout
// and JSON lines to a size-rotated file.
func NewFileLogger(name string, level zapcore.Level, file FileConfig) Logger {
	maxSize := file.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	rotator := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    maxSize,
		MaxBackups: file.MaxBackups,
		Compress:   file.Compress,
	}

	atomicLevel := zap.NewAtomicLevelAt(level)
	stdoutCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(newEncoderConfig(zapcore.CapitalColorLevelEncoder)),
		zapcore.Lock(os.Stdout),
		atomicLevel,
	)
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig(zapcore.LowercaseLevelEncoder)),
		zapcore.AddSync(rotator),
		atomicLevel,
	)
	return newImpl(name, atomicLevel, zapcore.NewTee(stdoutCore, fileCore))
}
