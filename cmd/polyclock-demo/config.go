package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the options a demo run is configured with, parsed the way
// the teacher repo's pkg/cli.ParseArgs does: flags first, falling back to
// environment variables when a flag is left at its zero value.
type Config struct {
	SoundFontPath string
	Tempo         float64
	LogLevel      string
}

// ParseArgs parses args into a Config, following flag > env var > default
// precedence exactly as pkg/cli.ParseArgs does for son-et's
// HEADLESS/LOG_LEVEL/TIMEOUT.
func ParseArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("polyclock-demo", flag.ContinueOnError)

	config := &Config{}
	fs.StringVar(&config.SoundFontPath, "soundfont", "", "path to a .sf2 SoundFont file (env POLYCLOCK_SOUNDFONT); omit to run silently")
	fs.Float64Var(&config.Tempo, "tempo", 0, "starting tempo in beats per minute (env POLYCLOCK_TEMPO, default 120)")
	fs.StringVar(&config.LogLevel, "log-level", "", "log level: debug, info, warn, error (env POLYCLOCK_LOG_LEVEL, default info)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if config.SoundFontPath == "" {
		config.SoundFontPath = os.Getenv("POLYCLOCK_SOUNDFONT")
	}

	if config.Tempo == 0 {
		if tempoEnv := os.Getenv("POLYCLOCK_TEMPO"); tempoEnv != "" {
			t, err := strconv.ParseFloat(tempoEnv, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid POLYCLOCK_TEMPO %q: %w", tempoEnv, err)
			}
			config.Tempo = t
		}
	}
	if config.Tempo == 0 {
		config.Tempo = 120
	}
	if config.Tempo <= 0 {
		return nil, fmt.Errorf("tempo must be positive, got %v", config.Tempo)
	}

	if config.LogLevel == "" {
		config.LogLevel = strings.ToLower(os.Getenv("POLYCLOCK_LOG_LEVEL"))
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", config.LogLevel)
	}

	return config, nil
}
