// Package log configures the process-wide logrus logger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"firestige.xyz/procsniff/internal/config"
)

var output *MultiWriter

// Init configures the standard logrus logger: stderr always, plus a rotating
// file when enabled.
func Init(cfg config.LogConfig) error {
	return InitWith(logrus.StandardLogger(), os.Stderr, cfg)
}

// InitWith configures l to write to console and the configured outputs.
func InitWith(l *logrus.Logger, console io.Writer, cfg config.LogConfig) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return err
	}

	w := NewMultiWriter().Add(console)
	if cfg.Outputs.File.Enabled {
		if _, err := w.AddFileAppender(cfg.Outputs.File); err != nil {
			return fmt.Errorf("failed to create file output: %w", err)
		}
	}

	l.SetLevel(level)
	l.SetFormatter(formatter)
	l.SetOutput(w)

	if l == logrus.StandardLogger() {
		if output != nil {
			_ = output.Close()
		}
		output = w
	}
	return nil
}

// Close releases file outputs opened by Init.
func Close() error {
	if output == nil {
		return nil
	}
	return output.Close()
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &logrus.JSONFormatter{}, nil
	case "text":
		f := new(prefixed.TextFormatter)
		f.FullTimestamp = true
		f.TimestampFormat = "15:04:05.000"
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", format)
	}
}

// parseLevel converts string level to logrus.Level.
func parseLevel(levelStr string) (logrus.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown level: %s", levelStr)
	}
}
