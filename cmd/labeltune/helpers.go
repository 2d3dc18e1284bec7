package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"yashubustudio/labeltune/categorizer"
)

// loadRuntime loads the configuration and builds the stderr logger.
func loadRuntime() (categorizer.Config, *zerolog.Logger, error) {
	cfg, err := categorizer.LoadConfig(rootFlags.configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func newLogger(w io.Writer, level string) (*zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().Timestamp().Logger()
	return &logger, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
