// Package logging builds the logrus logger shared by subfeed components.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures New.
type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

// New returns a logger writing to opts.Out (stderr by default) so that
// command output on stdout stays machine-readable.
func New(opts Options) (*log.Logger, error) {
	logger := log.New()

	logger.Out = opts.Out
	if logger.Out == nil {
		logger.Out = os.Stderr
	}

	level := opts.Level
	if level == "" {
		level = "warn"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		logger.Formatter = &log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		}
	case FormatJSON:
		logger.Formatter = &log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		}
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", opts.Format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything. Components fall back to it
// when constructed without one.
func Discard() *log.Logger {
	logger := log.New()
	logger.Out = io.Discard
	logger.SetLevel(log.PanicLevel)
	return logger
}

// Component tags entries with the component that produced them.
func Component(logger log.FieldLogger, name string) log.FieldLogger {
	if logger == nil {
		logger = Discard()
	}
	return logger.WithField("component", name)
}
