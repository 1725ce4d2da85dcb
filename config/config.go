package config

import (
	"fmt"

	"github.com/kbukum/gocompose/logger"
	"github.com/kbukum/gocompose/validation"
)

// Config is the configuration of a composition host.
type Config struct {
	Name        string            `yaml:"name" mapstructure:"name" validate:"required"`
	Logging     logger.Config     `yaml:"logging" mapstructure:"logging"`
	Composition CompositionConfig `yaml:"composition" mapstructure:"composition"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry"`
}

// CompositionConfig tunes container behaviour.
type CompositionConfig struct {
	// DefaultMode lists the resolve flags used when recomposing without an
	// explicit mode: missing, recomposable, composed.
	DefaultMode []string `yaml:"default_mode" mapstructure:"default_mode" validate:"dive,oneof=missing recomposable composed"`
	// CatalogFile points at an export manifest read by catalog.File.
	CatalogFile string `yaml:"catalog_file" mapstructure:"catalog_file"`
	// WatchCatalog reloads CatalogFile when it changes on disk.
	WatchCatalog bool `yaml:"watch_catalog" mapstructure:"watch_catalog"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// Defaults returns the default values keyed the way Load expects them.
func Defaults() map[string]any {
	return map[string]any{
		"name":                      "gocompose",
		"logging.level":             "info",
		"logging.format":            logger.FormatConsole,
		"logging.output":            "stderr",
		"logging.timestamp":         true,
		"composition.default_mode":  []string{"missing", "recomposable"},
		"composition.catalog_file":  "",
		"composition.watch_catalog": false,
		"telemetry.enabled":         false,
		"telemetry.endpoint":        "localhost:4318",
		"telemetry.insecure":        true,
		"telemetry.sample_rate":     1.0,
	}
}

// LoadConfig loads, defaults and validates a Config.
func LoadConfig(name string, opts ...LoaderOption) (*Config, error) {
	cfg := &Config{}
	opts = append([]LoaderOption{WithDefaults(Defaults())}, opts...)
	if err := Load(name, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	c.Logging.ApplyDefaults()
	if len(c.Composition.DefaultMode) == 0 {
		c.Composition.DefaultMode = []string{"missing", "recomposable"}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
