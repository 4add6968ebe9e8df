package cacheinfra

import (
	"errors"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Config holds the sturdyc settings backing a Store.
type Config struct {
	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int `yaml:"capacity"`

	// NumShards spreads entries across independently locked shards. Must be greater than 0.
	NumShards int `yaml:"num_shards"`

	// TTL is how long an entry is served before it is fetched again. Must be greater than 0.
	TTL time.Duration `yaml:"ttl"`

	// EvictionPercentage is the share of entries dropped when Capacity is reached (1-100).
	EvictionPercentage int `yaml:"eviction_percentage"`

	// EarlyRefresh refreshes hot entries in the background before they expire.
	// Nil disables early refreshes.
	EarlyRefresh *EarlyRefreshConfig `yaml:"early_refresh"`

	// MissingRecordStorage remembers keys the source reported as not found.
	MissingRecordStorage bool `yaml:"missing_record_storage"`

	// EvictionInterval overrides how often expired entries are swept. Zero keeps the sturdyc default.
	EvictionInterval time.Duration `yaml:"eviction_interval"`
}

// EarlyRefreshConfig maps onto sturdyc.WithEarlyRefreshes.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `yaml:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
}

// DefaultConfig sizes the store for a statement catalog: definitions change rarely,
// so the TTL is long and unknown keys are remembered.
func DefaultConfig() Config {
	return Config{
		Capacity:             5000,
		NumShards:            16,
		TTL:                  30 * time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	}
}

// ToSturdycOptions returns the optional sturdyc settings. Capacity, NumShards, TTL and
// EvictionPercentage are constructor arguments and are not included.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	const positive = "must be greater than 0"

	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required.Error(positive), validation.Min(1).Error(positive)),
		validation.Field(&c.NumShards, validation.Required.Error(positive), validation.Min(1).Error(positive)),
		validation.Field(&c.TTL, validation.Required.Error(positive), validation.Min(time.Duration(1)).Error(positive)),
		validation.Field(&c.EvictionPercentage,
			validation.Required.Error("must be between 1 and 100"),
			validation.Min(1).Error("must be between 1 and 100"),
			validation.Max(100).Error("must be between 1 and 100"),
		),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0)).Error("must be non-negative")),
	)
	if err != nil {
		return FirstConfigError("", err)
	}

	if c.EarlyRefresh != nil {
		er := c.EarlyRefresh
		nonNegative := validation.Min(time.Duration(0)).Error("must be non-negative")
		err = validation.ValidateStruct(er,
			validation.Field(&er.MinAsyncRefreshTime, nonNegative),
			validation.Field(&er.MaxAsyncRefreshTime, nonNegative),
			validation.Field(&er.SyncRefreshTime, nonNegative),
			validation.Field(&er.RetryBaseDelay, nonNegative),
		)
		if err != nil {
			return FirstConfigError("EarlyRefresh.", err)
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// FirstConfigError converts ozzo validation errors into a *ConfigError for the
// alphabetically first failing field. Other errors are returned unchanged.
func FirstConfigError(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	field := fields[0]
	return &ConfigError{Field: prefix + field, Message: fieldErrs[field].Error()}
}
