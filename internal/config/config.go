package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marlefranco/VidExtract/internal/ocr"
	"github.com/marlefranco/VidExtract/internal/timestamp"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// OCR settings
	OCR OCRConfig `yaml:"ocr"`

	// Ordered timestamp patterns tried against OCR output
	Patterns []PatternConfig `yaml:"patterns"`

	// Search settings
	Search SearchConfig `yaml:"search"`

	// Extraction settings
	Extract ExtractConfig `yaml:"extract"`
}

type OCRConfig struct {
	// Placement is one of top-right, top-left, bottom-right, bottom-left,
	// custom.
	Placement string `yaml:"placement"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
}

type PatternConfig struct {
	Regex  string `yaml:"regex"`
	Layout string `yaml:"layout"`
}

type SearchConfig struct {
	BaseStep            int  `yaml:"base_step"`
	TimeoutSeconds      int  `yaml:"timeout_seconds"`
	PrioritizeTimeOfDay bool `yaml:"prioritize_time_of_day"`
}

type ExtractConfig struct {
	ChunkSize int    `yaml:"chunk_size"`
	FourCC    string `yaml:"fourcc"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Region resolves the OCR settings into a concrete region.
func (c *Config) Region() (ocr.Region, error) {
	placement, err := ocr.ParsePlacement(c.OCR.Placement)
	if err != nil {
		return ocr.Region{}, fmt.Errorf("ocr.placement: %w", err)
	}
	return ocr.Region{
		Placement: placement,
		Width:     c.OCR.Width,
		Height:    c.OCR.Height,
		X:         c.OCR.X,
		Y:         c.OCR.Y,
	}, nil
}

// TimestampPatterns compiles the configured patterns in order.
func (c *Config) TimestampPatterns() ([]timestamp.Pattern, error) {
	if len(c.Patterns) == 0 {
		return timestamp.DefaultPatterns(), nil
	}
	patterns := make([]timestamp.Pattern, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Regex, err)
		}
		patterns = append(patterns, timestamp.Pattern{Regexp: re, Layout: p.Layout})
	}
	return patterns, nil
}

// SearchTimeout returns the configured search budget.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

func defaultConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			Placement: "top-right",
			Width:     300,
			Height:    50,
		},
		Search: SearchConfig{
			BaseStep:            10,
			TimeoutSeconds:      60,
			PrioritizeTimeOfDay: true,
		},
		Extract: ExtractConfig{
			ChunkSize: 100,
			FourCC:    "mp4v",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./vidextract.yaml",
		"./vidextract.yml",
		filepath.Join(os.Getenv("HOME"), ".vidextract", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
