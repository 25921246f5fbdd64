package daypart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes, fills unset fields from Default
// and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	def := Default()
	if len(cfg.Categories) == 0 {
		cfg.Categories = def.Categories
		if cfg.Wrap == "" {
			cfg.Wrap = def.Wrap
		}
	}
	if cfg.Regime == "" {
		cfg.Regime = def.Regime
	}
	if cfg.Objective == "" {
		cfg.Objective = def.Objective
	}
	if cfg.MinDuration == 0 {
		cfg.MinDuration = def.MinDuration
	}
	if cfg.TimeLimit == 0 {
		cfg.TimeLimit = def.TimeLimit
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
