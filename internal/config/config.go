// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all packetpilot configuration.
type Config struct {
	Viewer Viewer `yaml:"viewer"`
	Sharkd Sharkd `yaml:"sharkd"`
}

// Viewer tunes the windowed record delivery subsystem and scroll behavior.
type Viewer struct {
	MaxCacheSize        int           `yaml:"max_cache_size"`        // records held in the LRU cache
	ChunkSize           int           `yaml:"chunk_size"`            // base fetch chunk, scaled up for huge captures
	PrefetchDistance    int           `yaml:"prefetch_distance"`     // records fetched beyond the viewport on each side
	Debounce            time.Duration `yaml:"debounce"`              // scroll burst coalescing window
	FastScrollThreshold float64       `yaml:"fast_scroll_threshold"` // rows/second past which pending fetches are cancelled
	ScrollCeiling       float64       `yaml:"scroll_ceiling"`        // maximum representable scroll extent
}

// Sharkd holds dissection engine settings.
type Sharkd struct {
	Binary string `yaml:"binary"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Viewer: Viewer{
			MaxCacheSize:        20000,
			ChunkSize:           500,
			PrefetchDistance:    200,
			Debounce:            30 * time.Millisecond,
			FastScrollThreshold: 4000,
			ScrollCeiling:       33_554_432,
		},
		Sharkd: Sharkd{
			Binary: "sharkd",
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Viewer.MaxCacheSize < 1 {
		return fmt.Errorf("config: viewer.max_cache_size must be positive, got %d", c.Viewer.MaxCacheSize)
	}
	if c.Viewer.ChunkSize < 1 {
		return fmt.Errorf("config: viewer.chunk_size must be positive, got %d", c.Viewer.ChunkSize)
	}
	if c.Viewer.PrefetchDistance < 0 {
		return fmt.Errorf("config: viewer.prefetch_distance must be non-negative, got %d", c.Viewer.PrefetchDistance)
	}
	if c.Viewer.Debounce < 0 {
		return fmt.Errorf("config: viewer.debounce must be non-negative, got %v", c.Viewer.Debounce)
	}
	if c.Viewer.FastScrollThreshold <= 0 {
		return fmt.Errorf("config: viewer.fast_scroll_threshold must be positive, got %v", c.Viewer.FastScrollThreshold)
	}
	if c.Viewer.ScrollCeiling <= 0 {
		return fmt.Errorf("config: viewer.scroll_ceiling must be positive, got %v", c.Viewer.ScrollCeiling)
	}
	if c.Sharkd.Binary == "" {
		return errors.New("config: sharkd.binary cannot be empty")
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: PACKETPILOT_SHARKD_BINARY, PACKETPILOT_CHUNK_SIZE,
// PACKETPILOT_CACHE_SIZE.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PACKETPILOT_SHARKD_BINARY"); v != "" {
		c.Sharkd.Binary = v
	}
	if v := os.Getenv("PACKETPILOT_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PACKETPILOT_CHUNK_SIZE %q: %w", v, err)
		}
		c.Viewer.ChunkSize = n
	}
	if v := os.Getenv("PACKETPILOT_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PACKETPILOT_CACHE_SIZE %q: %w", v, err)
		}
		c.Viewer.MaxCacheSize = n
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Viewer *rawViewer `yaml:"viewer"`
	Sharkd *rawSharkd `yaml:"sharkd"`
}

type rawViewer struct {
	MaxCacheSize        *int           `yaml:"max_cache_size"`
	ChunkSize           *int           `yaml:"chunk_size"`
	PrefetchDistance    *int           `yaml:"prefetch_distance"`
	Debounce            *time.Duration `yaml:"debounce"`
	FastScrollThreshold *float64       `yaml:"fast_scroll_threshold"`
	ScrollCeiling       *float64       `yaml:"scroll_ceiling"`
}

type rawSharkd struct {
	Binary *string `yaml:"binary"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.Viewer != nil {
		if layer.Viewer.MaxCacheSize != nil {
			c.Viewer.MaxCacheSize = *layer.Viewer.MaxCacheSize
		}
		if layer.Viewer.ChunkSize != nil {
			c.Viewer.ChunkSize = *layer.Viewer.ChunkSize
		}
		if layer.Viewer.PrefetchDistance != nil {
			c.Viewer.PrefetchDistance = *layer.Viewer.PrefetchDistance
		}
		if layer.Viewer.Debounce != nil {
			c.Viewer.Debounce = *layer.Viewer.Debounce
		}
		if layer.Viewer.FastScrollThreshold != nil {
			c.Viewer.FastScrollThreshold = *layer.Viewer.FastScrollThreshold
		}
		if layer.Viewer.ScrollCeiling != nil {
			c.Viewer.ScrollCeiling = *layer.Viewer.ScrollCeiling
		}
	}
	if layer.Sharkd != nil {
		if layer.Sharkd.Binary != nil {
			c.Sharkd.Binary = *layer.Sharkd.Binary
		}
	}
}
