package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the log file. Empty logs to stderr only.
	FilePath string
	// MaxSizeMB is the size at which the file rotates (default: 10).
	MaxSizeMB int
	// MaxFiles is the number of rotated files kept (default: 5).
	MaxFiles int
	// Compress gzips rotated files.
	Compress bool
	// WriteToStderr also writes records to stderr.
	WriteToStderr bool
}

// DefaultConfig logs at info to stderr only.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig logs everything to the default log file and stderr.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.FilePath = DefaultLogPath()
	return cfg
}

// StdioConfig is for the MCP stdio transport, where stdout carries
// JSON-RPC and nothing else may be written to the terminal.
func StdioConfig(level string) Config {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.FilePath = DefaultLogPath()
	cfg.WriteToStderr = false
	return cfg
}

// newFileWriter opens a size-rotated log file, creating its directory.
func newFileWriter(cfg Config) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 5
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}

// Setup builds a JSON logger for cfg. The returned cleanup closes the log
// file and must be called on shutdown.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var (
		writers []io.Writer
		file    *lumberjack.Logger
	)
	if cfg.FilePath != "" {
		var err error
		if file, err = newFileWriter(cfg); err != nil {
			return nil, nil, err
		}
		writers = append(writers, file)
	}
	if cfg.WriteToStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: LevelFromString(cfg.Level),
	}))
	cleanup := func() {
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}

// SetupDefault builds a logger for cfg and installs it as slog's default.
func SetupDefault(cfg Config) (func(), error) {
	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// LevelFromString converts a level name to slog.Level. Unknown names are info.
func LevelFromString(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
