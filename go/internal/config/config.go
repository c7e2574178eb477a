// Package config loads server settings from .env, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/chainwatch/go/internal/dbconfig"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the full server configuration
type Config struct {
	Server struct {
		Port               int      `yaml:"port"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		SignupRatePerMin   int      `yaml:"signup_rate_per_min"`
	} `yaml:"server"`

	Store    string          `yaml:"store"`
	Database dbconfig.Config `yaml:"-"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Torn struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"torn"`

	Schedule struct {
		Timezone   string `yaml:"timezone"`
		WindowDays int    `yaml:"window_days"`
	} `yaml:"schedule"`
}

// Default returns the settings used when nothing overrides them
func Default() *Config {
	cfg := &Config{Store: StorePostgres}
	cfg.Server.Port = 8080
	cfg.Server.SignupRatePerMin = 10
	cfg.NATS.SubjectPrefix = "chainwatch.signups"
	cfg.Log.Level = "info"
	cfg.Schedule.Timezone = "UTC"
	cfg.Schedule.WindowDays = 2
	return cfg
}

// Load reads .env (if present), then the YAML file at path (if present), then env overrides
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.Database = dbconfig.NewConfigFromEnv()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("no config file, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Server.SignupRatePerMin = getEnvAsInt("SIGNUP_RATE_PER_MIN", c.Server.SignupRatePerMin)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitList(v)
	}

	c.Store = strings.ToLower(getEnv("STORE", c.Store))
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		if pretty, err := strconv.ParseBool(v); err == nil {
			c.Log.Pretty = pretty
		}
	}
	c.Torn.BaseURL = getEnv("TORN_API_URL", c.Torn.BaseURL)
	c.Schedule.Timezone = getEnv("SCHEDULE_TIMEZONE", c.Schedule.Timezone)
	c.Schedule.WindowDays = getEnvAsInt("SCHEDULE_WINDOW_DAYS", c.Schedule.WindowDays)
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.SignupRatePerMin <= 0 {
		return fmt.Errorf("signup rate must be positive, got %d", c.Server.SignupRatePerMin)
	}
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreMemory)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Schedule.WindowDays <= 0 {
		return fmt.Errorf("schedule window must be at least one day, got %d", c.Schedule.WindowDays)
	}
	return nil
}

// Location returns the zone schedule days are cut in
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// LogLevel returns the parsed zerolog level, info if unparseable
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
