// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.sr.ht/~jakintosh/warrant/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a logger from cfg. When a file is configured, output goes to
// both stdout and a rotating file; the returned closer releases the file.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LogConfig, stdout io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %v", cfg.Level, err)
	}
	log.SetLevel(logLevel)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	if cfg.File == "" {
		log.SetOutput(stdout)
		return log, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %v", err)
	}
	fileLogger := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    100, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(stdout, fileLogger))
	return log, fileLogger, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
