// Package logging routes the standard logger to stdout and, optionally, a rotating file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"example.com/attendance/internal/config"
)

// Setup points the standard logger at stdout plus the configured file and returns
// a closer for the file writer. The closer is a no-op when no file is configured.
func Setup(cfg config.LogConfig, prefix string) (io.Closer, error) {
	log.SetPrefix(prefix)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
	return fileWriter, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
