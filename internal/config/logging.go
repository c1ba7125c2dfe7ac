package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type LoggingConf struct {
	Level string `json:"level"`
	// Path is a log file; empty means stderr.
	Path string `json:"path"`
	JSON bool   `json:"json"`
}

// IsDebugMode reports whether the configured level is debug or more verbose.
func (c LoggingConf) IsDebugMode() bool {
	lvl, err := zerolog.ParseLevel(c.Level)
	return err == nil && c.Level != "" && lvl <= zerolog.DebugLevel
}

// SetupLogging configures the global zerolog logger. The returned function closes the
// log file, if any.
func SetupLogging(conf LoggingConf) (func() error, error) {
	level := zerolog.InfoLevel
	if conf.Level != "" {
		lvl, err := zerolog.ParseLevel(conf.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", conf.Level, err)
		}
		level = lvl
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	closer := func() error { return nil }
	if conf.Path != "" {
		f, err := os.OpenFile(conf.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = f.Close
	}
	if !conf.JSON && conf.Path == "" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}
