// Package config loads the gallery settings from an optional YAML file
// layered over defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the non-secret settings. Credentials come from the
// environment only.
type Config struct {
	Slack struct {
		Channel string `yaml:"channel"`
	} `yaml:"slack"`
	Gallery struct {
		LookbackDays int    `yaml:"lookback_days"`
		OutputDir    string `yaml:"output_dir"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"gallery"`
	Sources []string `yaml:"sources"`
}

// Default returns the built-in settings.
func Default() Config {
	var cfg Config
	cfg.Slack.Channel = "#drawma"
	cfg.Gallery.LookbackDays = 7
	cfg.Gallery.OutputDir = "img/drawma"
	cfg.Sources = []string{
		"reuters", "foxnews", "cnn", "bbc",
		"ft", "npr", "guardian", "breitbart",
	}
	return cfg
}

// Load reads a YAML config file over the defaults. A missing file is
// not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
