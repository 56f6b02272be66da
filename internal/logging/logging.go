// Package logging builds the file logger shared by a berth invocation.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultPath = "/tmp/berth.log"

	envPath  = "BERTH_LOG"
	envLevel = "BERTH_LOG_LEVEL"
)

// Options selects where and how verbosely to log.
type Options struct {
	Path  string
	Level string
}

// OptionsFromEnv reads BERTH_LOG and BERTH_LOG_LEVEL from lookup.
func OptionsFromEnv(lookup func(string) (string, bool)) Options {
	opts := Options{Path: DefaultPath, Level: "info"}
	if v, ok := lookup(envPath); ok && strings.TrimSpace(v) != "" {
		opts.Path = strings.TrimSpace(v)
	}
	if v, ok := lookup(envLevel); ok && strings.TrimSpace(v) != "" {
		opts.Level = strings.TrimSpace(v)
	}
	return opts
}

// Dir is the directory holding the log file.
func (o Options) Dir() string {
	return filepath.Dir(o.Path)
}

// New opens a logger appending to opts.Path. Every entry carries a session
// id unique to this invocation.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.OutputPaths = []string{opts.Path}
	cfg.ErrorOutputPaths = []string{opts.Path}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", opts.Path, err)
	}
	return logger.With(zap.String("session", uuid.NewString())), nil
}
