// SPDX-License-Identifier: Apache-2.0
// Copyright Contributors to the OpenTimelineIO project

package main

import (
	"log/slog"
	"os"

	"github.com/ansel1/merry/v2"
	"gopkg.in/yaml.v3"

	cmx3600 "github.com/Avalanche-io/otio-edl"
	"github.com/Avalanche-io/otio-edl/timecode"
)

// Config holds the conversion settings. Flags override values read from a
// config file.
type Config struct {
	Rate           float64 `yaml:"rate"`
	IgnoreMismatch bool    `yaml:"ignore_mismatch"`
	Style          string  `yaml:"style"`
	ReelLength     int     `yaml:"reel_length"`
	Out            string  `yaml:"out"`
	Repairs        string  `yaml:"repairs"`
	LogLevel       string  `yaml:"log_level"`
	Jobs           int     `yaml:"jobs"`
}

func defaultConfig() Config {
	return Config{
		Rate:       cmx3600.DefaultRate,
		Style:      cmx3600.DefaultStyle.String(),
		ReelLength: cmx3600.DefaultReelNameLength,
		LogLevel:   "info",
		Jobs:       4,
	}
}

// loadConfig reads a YAML config file over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, merry.Prependf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, merry.Wrap(cmx3600.ErrInvalidConfiguration, merry.WithMessagef("parsing config %s: %v", path, err))
	}
	return cfg, nil
}

// Validate checks every setting and reports the first bad one.
func (c Config) Validate() error {
	if !timecode.ValidRate(c.Rate) {
		return merry.Wrap(cmx3600.ErrInvalidConfiguration, merry.WithMessagef("invalid rate %v", c.Rate))
	}
	if _, err := cmx3600.ParseOutputStyle(c.Style); err != nil {
		return err
	}
	if c.ReelLength < 0 {
		return merry.Wrap(cmx3600.ErrInvalidConfiguration, merry.WithMessagef("reel length %d is negative", c.ReelLength))
	}
	if c.Jobs < 1 {
		return merry.Wrap(cmx3600.ErrInvalidConfiguration, merry.WithMessagef("jobs must be at least 1, got %d", c.Jobs))
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, merry.Wrap(cmx3600.ErrInvalidConfiguration, merry.WithMessagef("unknown log level %q", c.LogLevel))
	}
	return level, nil
}
