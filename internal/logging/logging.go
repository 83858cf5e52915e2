// Package logging routes the standard logger and loggo to stderr and, when
// configured, to a size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/juju/loggo"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Level of the loggo hierarchy, e.g. "WARNING". Defaults to INFO.
	Level string
}

// Setup installs the outputs and returns a closer for the log file. The
// closer is a no-op when no file is configured.
func Setup(cfg Config) (io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file
	}

	log.SetOutput(out)

	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(out, loggo.DefaultFormatter)); err != nil {
		return nil, fmt.Errorf("failed to install loggo writer: %w", err)
	}

	level := loggo.INFO
	if cfg.Level != "" {
		parsed, ok := loggo.ParseLevel(cfg.Level)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", cfg.Level)
		}
		level = parsed
	}
	loggo.GetLogger("").SetLogLevel(level)

	if cfg.File != "" {
		log.Printf("Logging to %s (max %d MB, %d backups)", cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
