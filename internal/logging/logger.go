// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Level is a logrus level name (debug, info, warn, error). Unknown values fall back to info.
	Level string
	// Format is "json" or "text".
	Format string
	// Service is attached to every entry as the "service" field when non-empty.
	Service string
	// Output defaults to stdout.
	Output io.Writer
}

// New returns a configured logger. When Service is set, the returned entry carries it on every record.
func New(opts Options) logrus.FieldLogger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(opts.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	if opts.Service != "" {
		return l.WithField("service", opts.Service)
	}
	return l
}

// Discard returns a logger that drops everything. Used by tests and optional dependencies.
func Discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
