package cache

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-statement-cache/internal/cacheinfra"
)

// ConfigError reports the first invalid configuration field.
type ConfigError = cacheinfra.ConfigError

// Config configures a statement Cache.
type Config struct {
	// MaxIdle bounds the number of available (not checked out) entries. When exceeded the
	// least recently released entry is destroyed. Zero keeps every entry until it is removed.
	MaxIdle int `yaml:"max_idle"`

	// StrictSQL makes Prepare fail with *SQLMismatchError when a key is prepared again
	// with different SQL or options. Otherwise the cached statement is returned and a
	// warning is logged.
	StrictSQL bool `yaml:"strict_sql"`

	// Logger defaults to a no-op logger.
	Logger *slog.Logger `yaml:"-"`

	// KeySerializer defaults to NewDefaultKeySerializer.
	KeySerializer KeySerializer `yaml:"-"`
}

// DefaultConfig returns an unbounded, lenient cache configuration.
func DefaultConfig() Config {
	return Config{}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.MaxIdle, validation.Min(0).Error("must be non-negative")),
	)
	return cacheinfra.FirstConfigError("", err)
}

// CatalogConfig exposes the catalog store settings for consumers of the cache package.
type CatalogConfig struct {
	Capacity             int                 `yaml:"capacity"`
	NumShards            int                 `yaml:"num_shards"`
	TTL                  time.Duration       `yaml:"ttl"`
	EvictionPercentage   int                 `yaml:"eviction_percentage"`
	EarlyRefresh         *EarlyRefreshConfig `yaml:"early_refresh"`
	MissingRecordStorage bool                `yaml:"missing_record_storage"`
	EvictionInterval     time.Duration       `yaml:"eviction_interval"`
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `yaml:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
}

// DefaultCatalogConfig returns a CatalogConfig populated with sensible defaults.
func DefaultCatalogConfig() CatalogConfig {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c CatalogConfig) Validate() error {
	return c.toInternal().Validate()
}

func (c CatalogConfig) toInternal() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	return cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) CatalogConfig {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	return CatalogConfig{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
}
