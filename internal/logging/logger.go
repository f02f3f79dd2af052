package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger passed to every component.
type Logger = *logrus.Logger

// Fields represents structured logging fields
type Fields = logrus.Fields

// Entry is a logger with fields attached.
type Entry = *logrus.Entry

// NewLogger returns a JSON logger writing to stdout at the given level.
// An unknown level falls back to info.
func NewLogger(level string) Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// Discard returns a logger that drops everything. Used by tests and by
// components constructed without a logger.
func Discard() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// TokenPreview shortens push tokens and other secrets for log lines.
func TokenPreview(s string) string {
	if len(s) <= 20 {
		return s
	}
	return s[:20] + "..."
}
