// Package config loads engine configuration from an optional YAML file
// plus BRAINSPARK_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/brainspark/engine/internal/llm"
	"github.com/brainspark/engine/internal/mastery"
)

// Config is the full engine configuration.
type Config struct {
	// Mode selects logger output: "dev" or "prod".
	Mode string

	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string

	// DBPath is the SQLite database path. Empty means the platform
	// default location.
	DBPath string

	// JWTSecret is the shared HS256 secret for bearer tokens.
	JWTSecret string

	// RedisAddr enables the shared rate limiter when set. Empty falls
	// back to the in-process limiter.
	RedisAddr string

	// RateLimit admits this many grading requests per user per minute.
	RateLimit int

	// Timezone buckets daily aggregates, IANA name. Default UTC.
	Timezone string

	LLM     llm.Config
	Decay   mastery.DecayConfig
	Bands   mastery.Bands
	Grading GradingConfig
}

// GradingConfig holds the grading thresholds and defaults.
type GradingConfig struct {
	CorrectThreshold   int
	IncorrectThreshold int
	DefaultLatencyMs   int
}

// Load reads config.yaml (if present, from ./configs or the working
// directory) and the environment, environment winning.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BRAINSPARK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("mode", "dev")
	v.SetDefault("addr", ":8080")
	v.SetDefault("ratelimit.per_minute", 30)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("grading.correct_threshold", 80)
	v.SetDefault("grading.incorrect_threshold", 50)
	v.SetDefault("grading.default_latency_ms", 30000)
	v.SetDefault("decay.window_days", 14)
	v.SetDefault("decay.rate_per_day", 1.5)
	v.SetDefault("decay.floor", 30)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Mode:      v.GetString("mode"),
		Addr:      v.GetString("addr"),
		DBPath:    v.GetString("db.path"),
		JWTSecret: v.GetString("jwt.secret_key"),
		RedisAddr: v.GetString("redis.addr"),
		RateLimit: v.GetInt("ratelimit.per_minute"),
		Timezone:  v.GetString("timezone"),
		LLM:       llm.ConfigFromEnv(),
		Decay: mastery.DecayConfig{
			InactivityWindow: time.Duration(v.GetInt("decay.window_days")) * 24 * time.Hour,
			RatePerDay:       v.GetFloat64("decay.rate_per_day"),
			Floor:            v.GetFloat64("decay.floor"),
		},
		Bands: mastery.DefaultBands(),
		Grading: GradingConfig{
			CorrectThreshold:   v.GetInt("grading.correct_threshold"),
			IncorrectThreshold: v.GetInt("grading.incorrect_threshold"),
			DefaultLatencyMs:   v.GetInt("grading.default_latency_ms"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints before the server starts.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt.secret_key (BRAINSPARK_JWT_SECRET_KEY) is required")
	}
	if c.Grading.IncorrectThreshold >= c.Grading.CorrectThreshold {
		return fmt.Errorf("grading thresholds inverted: incorrect %d >= correct %d",
			c.Grading.IncorrectThreshold, c.Grading.CorrectThreshold)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if err := c.Bands.Validate(); err != nil {
		return fmt.Errorf("mastery bands: %w", err)
	}
	return c.LLM.Validate()
}

// Location resolves the configured aggregation timezone. Call after
// Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
