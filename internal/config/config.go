// Package config loads service settings from the environment, an optional
// .env file and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string          `mapstructure:"port"`
	PantryURL     string          `mapstructure:"pantry_url"`
	RecipeURL     string          `mapstructure:"recipe_url"`
	DictionaryURL string          `mapstructure:"dictionary_url"`
	Log           LogConfig       `mapstructure:"log"`
	Reference     ReferenceConfig `mapstructure:"reference"`
	Matching      MatchingConfig  `mapstructure:"matching"`
	Ledger        LedgerConfig    `mapstructure:"ledger"`
	Server        ServerConfig    `mapstructure:"server"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

// ReferenceConfig points at unit and density files that replace the
// built-in tables. Watch reloads the density file when it changes.
type ReferenceConfig struct {
	UnitsFile   string `mapstructure:"units_file"`
	DensityFile string `mapstructure:"density_file"`
	Watch       bool   `mapstructure:"watch"`
}

type MatchingConfig struct {
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var envBindings = map[string]string{
	"port":                     "PORT",
	"pantry_url":               "PANTRY_URL",
	"recipe_url":               "RECIPE_URL",
	"dictionary_url":           "DICTIONARY_URL",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
	"log.development":          "LOG_DEVELOPMENT",
	"reference.units_file":     "UNITS_FILE",
	"reference.density_file":   "DENSITY_FILE",
	"reference.watch":          "DENSITY_WATCH",
	"matching.fuzzy_threshold": "FUZZY_THRESHOLD",
	"ledger.path":              "LEDGER_PATH",
	"server.read_timeout":      "SERVER_READ_TIMEOUT",
	"server.write_timeout":     "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":      "SERVER_IDLE_TIMEOUT",
	"server.shutdown_timeout":  "SERVER_SHUTDOWN_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("matching.fuzzy_threshold", 0.75)
	v.SetDefault("ledger.path", "reconcile.db")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

// Load reads .env from the working directory when present, then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Matching.FuzzyThreshold <= 0 || c.Matching.FuzzyThreshold > 1 {
		return fmt.Errorf("FUZZY_THRESHOLD must be in (0, 1], got %g", c.Matching.FuzzyThreshold)
	}
	if c.Reference.Watch && c.Reference.DensityFile == "" {
		return errors.New("DENSITY_WATCH requires DENSITY_FILE")
	}
	return nil
}

// RequireUpstreams checks the settings the HTTP service cannot run without.
func (c *Config) RequireUpstreams() error {
	if c.PantryURL == "" {
		return errors.New("PANTRY_URL is required")
	}
	if c.RecipeURL == "" {
		return errors.New("RECIPE_URL is required")
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
