// Package logging builds the prefixed loggers shared by the CLI and daemon.
package logging

import (
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger with the given bracketed prefix. When path is
// non-empty, output goes to a size-rotated file; otherwise to stderr.
func New(prefix, path string) *log.Logger {
	if path == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}

	return log.New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, prefix, log.LstdFlags)
}
