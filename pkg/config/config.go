// Package config handles engine tuning configuration for selfheal.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the engine configuration (selfheal.yaml).
type Config struct {
	// ResolveTimeout bounds a whole Resolve call: exact attempt,
	// cache consultation and strategy search combined.
	ResolveTimeout time.Duration `yaml:"resolveTimeout"`

	// RecentCapacity sizes the recent-healings ring buffer.
	RecentCapacity int `yaml:"recentCapacity"`

	// CachePath is where the JSON cache store lives. Empty disables
	// persistence.
	CachePath string `yaml:"cachePath"`

	// LogPath is where the engine log is written. Empty logs to stderr.
	LogPath string `yaml:"logPath"`

	Strategies Strategies `yaml:"strategies"`
}

// Strategies holds per-strategy thresholds. All values are tunable;
// the defaults match the documented healing contract.
type Strategies struct {
	TextExactConfidence   float64 `yaml:"textExactConfidence"`
	TextPartialConfidence float64 `yaml:"textPartialConfidence"`
	AttributeThreshold    float64 `yaml:"attributeThreshold"`
	NearbyRadius          int     `yaml:"nearbyRadius"`
	NearbyConfidence      float64 `yaml:"nearbyConfidence"`
	PositionMaxDistance   float64 `yaml:"positionMaxDistance"`
	PositionMaxConfidence float64 `yaml:"positionMaxConfidence"`
	PositionMinConfidence float64 `yaml:"positionMinConfidence"`
	VisualThreshold       float64 `yaml:"visualThreshold"`
}

// Default returns the configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 10 * time.Second
	}
	if c.RecentCapacity <= 0 {
		c.RecentCapacity = 50
	}
	s := &c.Strategies
	if s.TextExactConfidence <= 0 {
		s.TextExactConfidence = 0.95
	}
	if s.TextPartialConfidence <= 0 {
		s.TextPartialConfidence = 0.75
	}
	if s.AttributeThreshold <= 0 {
		s.AttributeThreshold = 0.6
	}
	if s.NearbyRadius <= 0 {
		s.NearbyRadius = 3
	}
	if s.NearbyConfidence <= 0 {
		s.NearbyConfidence = 0.6
	}
	if s.PositionMaxDistance <= 0 {
		s.PositionMaxDistance = 150
	}
	if s.PositionMaxConfidence <= 0 {
		s.PositionMaxConfidence = 0.7
	}
	if s.PositionMinConfidence <= 0 {
		s.PositionMinConfidence = 0.3
	}
	if s.VisualThreshold <= 0 {
		s.VisualThreshold = 0.8
	}
}

// Load loads configuration from a file, applying defaults to any
// field left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.defaults()

	return &cfg, nil
}

// LoadFromDir looks for selfheal.yaml or selfheal.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "selfheal.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "selfheal.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}
