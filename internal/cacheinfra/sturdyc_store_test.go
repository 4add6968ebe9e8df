package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 5000 {
		t.Errorf("expected Capacity to be 5000, got %d", cfg.Capacity)
	}
	if cfg.NumShards != 16 {
		t.Errorf("expected NumShards to be 16, got %d", cfg.NumShards)
	}
	if cfg.TTL != 30*time.Minute {
		t.Errorf("expected TTL to be 30 minutes, got %v", cfg.TTL)
	}
	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}
	if !cfg.MissingRecordStorage {
		t.Error("expected MissingRecordStorage to be true")
	}
	if cfg.EarlyRefresh != nil {
		t.Error("expected EarlyRefresh to be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{Capacity: 100, NumShards: 4, TTL: time.Minute, EvictionPercentage: 10}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
		wantMsg   string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero capacity", mutate: func(c *Config) { c.Capacity = 0 }, wantField: "Capacity", wantMsg: "must be greater than 0"},
		{name: "negative capacity", mutate: func(c *Config) { c.Capacity = -5 }, wantField: "Capacity", wantMsg: "must be greater than 0"},
		{name: "zero shards", mutate: func(c *Config) { c.NumShards = 0 }, wantField: "NumShards", wantMsg: "must be greater than 0"},
		{name: "zero ttl", mutate: func(c *Config) { c.TTL = 0 }, wantField: "TTL", wantMsg: "must be greater than 0"},
		{name: "eviction too low", mutate: func(c *Config) { c.EvictionPercentage = 0 }, wantField: "EvictionPercentage", wantMsg: "must be between 1 and 100"},
		{name: "eviction too high", mutate: func(c *Config) { c.EvictionPercentage = 101 }, wantField: "EvictionPercentage", wantMsg: "must be between 1 and 100"},
		{name: "negative eviction interval", mutate: func(c *Config) { c.EvictionInterval = -time.Second }, wantField: "EvictionInterval", wantMsg: "must be non-negative"},
		{
			name: "negative early refresh",
			mutate: func(c *Config) {
				c.EarlyRefresh = &EarlyRefreshConfig{
					MinAsyncRefreshTime: -time.Second,
					MaxAsyncRefreshTime: 20 * time.Second,
					SyncRefreshTime:     30 * time.Second,
					RetryBaseDelay:      100 * time.Millisecond,
				}
			},
			wantField: "EarlyRefresh.MinAsyncRefreshTime",
			wantMsg:   "must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no validation error, got %v", err)
				}
				return
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, cfgErr.Field)
			}
			if cfgErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, cfgErr.Message)
			}
		})
	}
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	cfg := Config{Capacity: 10, NumShards: 1, TTL: time.Minute, EvictionPercentage: 10}
	if got := len(cfg.ToSturdycOptions()); got != 0 {
		t.Errorf("expected no options for minimal config, got %d", got)
	}

	cfg.MissingRecordStorage = true
	cfg.EvictionInterval = time.Second
	cfg.EarlyRefresh = &EarlyRefreshConfig{
		MinAsyncRefreshTime: time.Second,
		MaxAsyncRefreshTime: 2 * time.Second,
		SyncRefreshTime:     3 * time.Second,
		RetryBaseDelay:      10 * time.Millisecond,
	}
	if got := len(cfg.ToSturdycOptions()); got != 3 {
		t.Errorf("expected 3 options, got %d", got)
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	if got := err.Error(); got != "config error in field TTL: must be greater than 0" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestNewStore_InvalidConfig(t *testing.T) {
	store, err := NewStore[string](Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	if store != nil {
		t.Error("expected nil store on error")
	}
	if !strings.HasPrefix(err.Error(), "config error in field ") {
		t.Errorf("unexpected error %q", err)
	}
}

func TestStore_GetOrFetch(t *testing.T) {
	store, err := NewStore[string](Config{
		Capacity:             100,
		NumShards:            2,
		TTL:                  time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	t.Run("fetches once then serves from cache", func(t *testing.T) {
		var calls atomic.Int32
		fetch := func(context.Context) (string, error) {
			calls.Add(1)
			return "SELECT 1", nil
		}

		for i := 0; i < 3; i++ {
			got, err := store.GetOrFetch(ctx, "q1", fetch)
			if err != nil {
				t.Fatalf("GetOrFetch: %v", err)
			}
			if got != "SELECT 1" {
				t.Fatalf("unexpected value %q", got)
			}
		}
		if calls.Load() != 1 {
			t.Errorf("expected a single fetch, got %d", calls.Load())
		}
		if v, ok := store.Get("q1"); !ok || v != "SELECT 1" {
			t.Errorf("expected cached value, got %q ok=%v", v, ok)
		}
	})

	t.Run("not found is remembered", func(t *testing.T) {
		var calls atomic.Int32
		fetch := func(context.Context) (string, error) {
			calls.Add(1)
			return "", ErrNotFound
		}

		for i := 0; i < 2; i++ {
			if _, err := store.GetOrFetch(ctx, "missing", fetch); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		}
		if calls.Load() != 1 {
			t.Errorf("expected missing record to be stored, fetch called %d times", calls.Load())
		}
	})

	t.Run("fetch errors propagate", func(t *testing.T) {
		boom := errors.New("source offline")
		_, err := store.GetOrFetch(ctx, "broken", func(context.Context) (string, error) {
			return "", boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected source error, got %v", err)
		}
	})

	t.Run("delete forces refetch", func(t *testing.T) {
		var calls atomic.Int32
		fetch := func(context.Context) (string, error) {
			calls.Add(1)
			return "SELECT 2", nil
		}
		if _, err := store.GetOrFetch(ctx, "q2", fetch); err != nil {
			t.Fatalf("GetOrFetch: %v", err)
		}
		store.Delete("q2")
		if _, err := store.GetOrFetch(ctx, "q2", fetch); err != nil {
			t.Fatalf("GetOrFetch: %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected refetch after delete, got %d fetches", calls.Load())
		}
	})
}
