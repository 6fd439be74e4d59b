// Package logging builds the process-wide structured logger cmd/flagkit-demo
// and the internal packages log through.
//
// Grounded on dorkly/logger.go's file-plus-console zap tee: a
// zap.NewDevelopmentConfig-based file sink teed with a console sink whose
// encoder blanks out everything but the level and message. Generalized
// here so the file path and level are configurable instead of hardcoded,
// and so a host that wants console-only logging can skip the file sink
// entirely.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls where and how verbosely the logger writes.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// FilePath, if non-empty, also tees output to this file using
	// zap's development (JSON-ish, human-readable) encoding.
	FilePath string
}

func (c Config) level() zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// New builds a *zap.SugaredLogger per cfg. Console output always goes to
// stdout; a FilePath additionally tees full-detail logs to disk.
func New(cfg Config) (*zap.SugaredLogger, error) {
	level := cfg.level()

	consoleEncoderConfig := zapcore.EncoderConfig{
		TimeKey:        "",
		LevelKey:       "",
		NameKey:        "",
		CallerKey:      "",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.EpochTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig), zapcore.Lock(zapcore.AddSync(os.Stdout)), level)

	if cfg.FilePath == "" {
		return zap.New(consoleCore).Sugar(), nil
	}

	fileLoggerConfig := zap.NewDevelopmentConfig()
	fileLoggerConfig.Level = zap.NewAtomicLevelAt(level)
	fileLoggerConfig.OutputPaths = []string{cfg.FilePath}
	fileLogger, err := fileLoggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("building file logger: %w", err)
	}

	tee := zapcore.NewTee(fileLogger.Core(), consoleCore)
	return zap.New(tee).Sugar(), nil
}
