// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package config loads Warden configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/warden/config.yaml",
	"/etc/warden/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "WARDEN_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping them
// to koanf paths: WARDEN_MONGO_URI -> mongo.uri.
const envPrefix = "WARDEN_"

// Config is the root configuration for the engine.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Mongo      MongoConfig      `koanf:"mongo"`
	HTTP       HTTPConfig       `koanf:"http"`
	Detection  DetectionConfig  `koanf:"detection"`
	Sweep      SweepConfig      `koanf:"sweep"`
	Reputation ReputationConfig `koanf:"reputation"`
}

// LoggingConfig configures the zerolog sink.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// MongoConfig configures the document store. URI is the only required
// setting in the whole configuration; a missing URI is fatal at startup.
type MongoConfig struct {
	URI                   string        `koanf:"uri" validate:"required"`
	Database              string        `koanf:"database" validate:"required"`
	AccountsCollection    string        `koanf:"accounts_collection" validate:"required"`
	LoginsCollection      string        `koanf:"logins_collection" validate:"required"`
	MemosCollection       string        `koanf:"memos_collection" validate:"required"`
	CheckpointsCollection string        `koanf:"checkpoints_collection" validate:"required"`
	ConnectTimeout        time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	OperationTimeout      time.Duration `koanf:"operation_timeout" validate:"gt=0"`
	MaxPoolSize           uint64        `koanf:"max_pool_size"`
}

// HTTPConfig configures the health/metrics/admin listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// AdminRateLimit is requests per minute per client IP on /api routes.
	AdminRateLimit int `koanf:"admin_rate_limit" validate:"gt=0"`
}

// DetectionConfig configures the leak/anomaly correlator.
type DetectionConfig struct {
	// IPWindow is the trailing window for the multi-IP rule.
	IPWindow time.Duration `koanf:"ip_window" validate:"gt=0"`
	// MaxDistinctIPs is the distinct-other-IP count above which the
	// multi-IP rule fires.
	MaxDistinctIPs int `koanf:"max_distinct_ips" validate:"gt=0"`
	// MaxDistinctCountries is the distinct-country count above which
	// the multi-country rule fires.
	MaxDistinctCountries int `koanf:"max_distinct_countries" validate:"gt=0"`
	// CountryLookback bounds how far back the multi-country rule looks.
	// Zero means forever, matching the historical behavior.
	CountryLookback time.Duration `koanf:"country_lookback" validate:"gte=0"`
}

// SweepConfig configures the periodic scans.
type SweepConfig struct {
	Interval          time.Duration `koanf:"interval" validate:"gt=0"`
	InactivityAfter   time.Duration `koanf:"inactivity_after" validate:"gt=0"`
	ExpiryWarnHorizon time.Duration `koanf:"expiry_warn_horizon" validate:"gt=0"`
	ExpiryWarnDays    []int         `koanf:"expiry_warn_days" validate:"min=1,dive,gt=0"`
	AccountBatchSize  int           `koanf:"account_batch_size" validate:"gt=0"`
	PerAccountTimeout time.Duration `koanf:"per_account_timeout" validate:"gt=0"`
}

// ReputationConfig configures the external VPN/proxy reputation service
// and the GeoIP resolver. Both fail open: lookup failure is never
// treated as a positive detection.
type ReputationConfig struct {
	ProxyCheckURL string        `koanf:"proxy_check_url" validate:"required,url"`
	ProxyCheckKey string        `koanf:"proxy_check_key"`
	GeoURL        string        `koanf:"geo_url" validate:"required,url"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	// RequestsPerSecond budgets outbound lookups across both services.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
	// BreakerFailures is the consecutive-failure count that opens the
	// circuit breaker.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Mongo: MongoConfig{
			URI:                   "",
			Database:              "minecraft_proxy",
			AccountsCollection:    "users",
			LoginsCollection:      "login_logs",
			MemosCollection:       "expiry_memos",
			CheckpointsCollection: "feed_checkpoints",
			ConnectTimeout:        10 * time.Second,
			OperationTimeout:      15 * time.Second,
			MaxPoolSize:           100,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AdminRateLimit:  60,
		},
		Detection: DetectionConfig{
			IPWindow:             24 * time.Hour,
			MaxDistinctIPs:       1,
			MaxDistinctCountries: 2,
			CountryLookback:      0,
		},
		Sweep: SweepConfig{
			Interval:          time.Hour,
			InactivityAfter:   7 * 24 * time.Hour,
			ExpiryWarnHorizon: 7 * 24 * time.Hour,
			ExpiryWarnDays:    []int{7, 3, 1},
			AccountBatchSize:  500,
			PerAccountTimeout: 10 * time.Second,
		},
		Reputation: ReputationConfig{
			ProxyCheckURL:     "https://proxycheck.io/v2",
			ProxyCheckKey:     "",
			GeoURL:            "https://ip-api.example.com/json",
			Timeout:           5 * time.Second,
			RequestsPerSecond: 5,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
		},
	}
}

// Load builds the configuration by layering defaults, an optional YAML
// file, and WARDEN_* environment variables, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags. A failure
// here is a ConfigurationError: fatal at startup, never during steady
// state.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// envTransform maps WARDEN_MONGO_URI to mongo.uri. Only the first
// underscore becomes a section separator; the rest stay as-is so field
// names like max_pool_size survive.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
