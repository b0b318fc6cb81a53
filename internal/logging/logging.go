// Package logging builds the zap logger shared by the profiler components.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wesleyorama2/perfcore/internal/profiler/config"
)

// Config selects level, encoding and destination.
type Config struct {
	Level       string
	Encoding    string
	Development bool

	// File, when set, receives logs through a size-rotated writer.
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Output is used when File is empty. Defaults to stderr.
	Output io.Writer
}

// FromSection converts the logging section of a config file.
func FromSection(s config.LoggingSection) Config {
	return Config{
		Level:       s.Level,
		Encoding:    s.Encoding,
		Development: s.Development,
		File:        s.File,
		MaxSizeMB:   s.MaxSizeMB,
		MaxBackups:  s.MaxBackups,
	}
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	core := zapcore.NewCore(newEncoder(cfg), writer(cfg), level)

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	return zap.New(core, opts...), nil
}

func newEncoder(cfg Config) zapcore.Encoder {
	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if strings.EqualFold(cfg.Encoding, "json") {
		return zapcore.NewJSONEncoder(enc)
	}
	if cfg.Development && cfg.File == "" {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(enc)
}

func writer(cfg Config) zapcore.WriteSyncer {
	if cfg.File != "" {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
	}
	if cfg.Output != nil {
		return zapcore.AddSync(cfg.Output)
	}
	return zapcore.Lock(os.Stderr)
}
