// Package config loads application settings from a .env file and environment
// variables. Environment variables always take precedence over .env values.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// FromYear is the earliest season harvested.
	FromYear int

	// OutputDir is where the dataset files and error log live.
	OutputDir string

	// BaseURL is the root of the racing database site.
	BaseURL string

	// Debug enables verbose logging.
	Debug bool
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() (*Config, error) {
	v := newViper()

	// Defaults
	v.SetDefault("KEIBADB_FROM_YEAR", 2013)
	v.SetDefault("KEIBADB_OUTPUT_DIR", "./output")
	v.SetDefault("KEIBADB_BASE_URL", "https://db.netkeiba.com/")
	v.SetDefault("KEIBADB_DEBUG", false)

	cfg := &Config{
		FromYear:  v.GetInt("KEIBADB_FROM_YEAR"),
		OutputDir: v.GetString("KEIBADB_OUTPUT_DIR"),
		BaseURL:   v.GetString("KEIBADB_BASE_URL"),
		Debug:     v.GetBool("KEIBADB_DEBUG"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FromYear < 1986 {
		return fmt.Errorf("config: KEIBADB_FROM_YEAR %d predates the online archive", c.FromYear)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("config: KEIBADB_OUTPUT_DIR must not be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("config: KEIBADB_BASE_URL must not be empty")
	}
	return nil
}

func newViper() *viper.Viper {
	// Silently load .env. Fine if the file doesn't exist.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	return v
}
