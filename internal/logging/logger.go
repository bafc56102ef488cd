// Package logging configures the process-wide logrus logger and its outputs.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	setupOnce sync.Once
	outputMu  sync.Mutex
	rotating  *lumberjack.Logger
)

// SetupBaseLogger installs the shared formatter. Safe to call more than once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
		log.SetLevel(log.InfoLevel)
	})
}

// SetLogLevel maps a user-facing level name onto logrus. Unknown names mean info.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// OutputConfig selects where log lines go. An empty Path keeps stderr.
type OutputConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ConfigureLogOutput points the logger at a rotating file, or back at stderr.
func ConfigureLogOutput(cfg OutputConfig) io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()

	if rotating != nil {
		_ = rotating.Close()
		rotating = nil
	}
	if strings.TrimSpace(cfg.Path) == "" {
		log.SetOutput(os.Stderr)
		return os.Stderr
	}

	rotating = &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   false,
	}
	log.SetOutput(rotating)
	return rotating
}

// CloseLogOutput flushes and closes a rotating file if one is active.
func CloseLogOutput() {
	outputMu.Lock()
	defer outputMu.Unlock()
	if rotating != nil {
		_ = rotating.Close()
		rotating = nil
	}
	log.SetOutput(os.Stderr)
}
