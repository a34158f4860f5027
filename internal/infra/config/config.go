// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Provider   ProviderConfig   `yaml:"provider"`
	Spotify    SpotifyConfig    `yaml:"spotify"`
	TokenStore TokenStoreConfig `yaml:"token_store"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr       string `yaml:"addr" default:":8080"`
	AdminToken string `yaml:"admin_token"`
}

// ProviderConfig represents song provider configuration.
type ProviderConfig struct {
	SongDirectory    string      `yaml:"song_directory" default:"songs/" validate:"required"`
	StreamQuality    string      `yaml:"stream_quality" default:"HIGH" validate:"oneof=LOW MEDIUM HIGH low medium high"`
	CacheTimeMinutes int         `yaml:"cache_time_minutes" default:"60" validate:"gte=1"`
	SearchLimit      int         `yaml:"search_limit" default:"30" validate:"gte=1,lte=50"`
	Cache            CacheConfig `yaml:"cache"`
}

// CacheConfig represents song cache tuning.
type CacheConfig struct {
	InitialCapacity  int `yaml:"initial_capacity" default:"256" validate:"gte=0"`
	MaximumSize      int `yaml:"maximum_size" default:"1024" validate:"gte=1"`
	SweepIntervalSec int `yaml:"sweep_interval_sec" default:"30" validate:"gte=-1"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID          string  `yaml:"client_id" validate:"required"`
	ClientSecret      string  `yaml:"client_secret" validate:"required"`
	Username          string  `yaml:"username" validate:"required"`
	Password          string  `yaml:"password" validate:"required"`
	DeviceID          string  `yaml:"device_id" validate:"required"`
	Market            string  `yaml:"market" validate:"omitempty,len=2" default:"JP"`
	TokenURL          string  `yaml:"token_url" validate:"omitempty,url"`
	APIURL            string  `yaml:"api_url" validate:"omitempty,url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"10" validate:"gt=0"`
	Burst             int     `yaml:"burst" default:"5" validate:"gte=1"`
	TimeoutSec        int     `yaml:"timeout_sec" default:"30" validate:"gte=1"`
}

// TokenStoreConfig selects where the auth token is persisted.
type TokenStoreConfig struct {
	Type     string         `yaml:"type" default:"yaml" validate:"oneof=yaml bolt"`
	Settings map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_USERNAME"); v != "" {
		c.Spotify.Username = v
	}
	if v := os.Getenv("SPOTIFY_PASSWORD"); v != "" {
		c.Spotify.Password = v
	}
	if v := os.Getenv("SPOTIFY_DEVICE_ID"); v != "" {
		c.Spotify.DeviceID = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Server.AdminToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// CacheTime returns how long an unused song stays cached.
func (c *Config) CacheTime() time.Duration {
	return time.Duration(c.Provider.CacheTimeMinutes) * time.Minute
}

// SpotifyTimeout returns the per request timeout for Spotify calls.
func (c *Config) SpotifyTimeout() time.Duration {
	return time.Duration(c.Spotify.TimeoutSec) * time.Second
}

// SweepInterval returns the background expiry sweep interval.
// A negative setting disables the sweep; expiry is then only checked on access.
func (c *Config) SweepInterval() time.Duration {
	if c.Provider.Cache.SweepIntervalSec < 0 {
		return -1
	}
	return time.Duration(c.Provider.Cache.SweepIntervalSec) * time.Second
}
