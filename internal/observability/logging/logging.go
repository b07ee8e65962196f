// Package logging builds the process zap logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select level and encoding.
type Options struct {
	Level  string
	Format string
	// Service is attached to every entry when set.
	Service string
}

// New returns a logger writing to stderr so stdout stays free for command
// output and the MCP stdio transport.
func New(opts Options) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(defaultString(opts.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}

	var cfg zap.Config
	switch strings.ToLower(defaultString(opts.Format, "console")) {
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.Development = false
	default:
		return nil, fmt.Errorf("logging format %q is not json or console", opts.Format)
	}
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging build: %w", err)
	}
	if opts.Service != "" {
		logger = logger.With(zap.String("service", opts.Service))
	}
	return logger, nil
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
