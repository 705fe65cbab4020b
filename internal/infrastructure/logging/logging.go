// Package logging builds the zap logger used across trustbim.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  string // debug | info | warn | error
	Format string // "json" or "console"
	// OutputPath defaults to stderr so stdout stays free for command output.
	OutputPath string
}

// New creates a structured logger from config.
func New(cfg Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		parsed, err := zap.ParseAtomicLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	zapConfig.Level = level

	switch strings.ToLower(cfg.Format) {
	case "", "console":
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.Sampling = nil
	case "json":
		zapConfig.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", cfg.Format)
	}

	output := "stderr"
	if cfg.OutputPath != "" {
		output = cfg.OutputPath
	}
	zapConfig.OutputPaths = []string{output}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Must is New for callers that cannot continue without a logger; it falls
// back to a no-op logger on bad config.
func Must(cfg Config) *zap.Logger {
	logger, err := New(cfg)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
