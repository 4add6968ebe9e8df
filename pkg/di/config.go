package di

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-statement-cache/cache"
)

// Config is the file level configuration of a Container.
type Config struct {
	Statements  cache.Config        `yaml:"statements"`
	Catalog     cache.CatalogConfig `yaml:"catalog"`
	Definitions cache.Definitions   `yaml:"definitions"`
}

// DefaultConfig returns the defaults every loaded file is applied on top of.
func DefaultConfig() Config {
	return Config{
		Statements: cache.DefaultConfig(),
		Catalog:    cache.DefaultCatalogConfig(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Statements.Validate(); err != nil {
		return fmt.Errorf("statements: %w", err)
	}
	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := c.Definitions.Validate(); err != nil {
		return fmt.Errorf("definitions: %w", err)
	}
	return nil
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
