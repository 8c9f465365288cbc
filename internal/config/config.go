// Package config loads and persists application configuration. Secrets
// (the X account credentials) can be supplied via environment variables,
// which take precedence over the config file.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Twitter  TwitterConfig  `toml:"twitter"`
	Database DatabaseConfig `toml:"database"`
	Scraping ScrapingConfig `toml:"scraping"`
	Reply    ReplyConfig    `toml:"reply"`
	Schedule ScheduleConfig `toml:"schedule"`
}

// TwitterConfig carries the login credentials for the automation account.
type TwitterConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Username string `toml:"username"` // for the optional username-confirmation screen
}

type DatabaseConfig struct {
	Path string `toml:"path"` // empty means <data dir>/xranking.db
}

type ScrapingConfig struct {
	Headless        bool `toml:"headless"`
	DefaultLimit    int  `toml:"default_limit"`
	ScrollIntervalS int  `toml:"scroll_interval_seconds"`
}

type ReplyConfig struct {
	RankingSize     int    `toml:"ranking_size"`
	CooldownSeconds int    `toml:"cooldown_seconds"`
	ApplicationURL  string `toml:"application_url"`
}

type ScheduleConfig struct {
	IngestKeyword    string `toml:"ingest_keyword"`
	IngestEveryHours int    `toml:"ingest_every_hours"`
	ReplyAt          string `toml:"reply_at"` // "HH:MM", empty disables
	Timezone         string `toml:"timezone"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Scraping: ScrapingConfig{
			Headless:        true,
			DefaultLimit:    10,
			ScrollIntervalS: 2,
		},
		Reply: ReplyConfig{
			RankingSize:     20,
			CooldownSeconds: 60,
		},
		Schedule: ScheduleConfig{
			IngestEveryHours: 2,
			Timezone:         "Asia/Tokyo",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xranking"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultDatabasePath returns the SQLite file location used when the config
// leaves database.path empty.
func DefaultDatabasePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "xranking.db"), nil
}

// Load reads config from disk and applies environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return &cfg, nil
}

// LoadOrDefault reads the config file, falling back to defaults (plus
// environment overrides) when no file exists yet.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = Default()
		cfg.applyEnv()
	}
	return cfg
}

// applyEnv lets credentials and the database path come from the environment,
// overriding whatever the file says.
func (c *Config) applyEnv() {
	if v := os.Getenv("TWITTER_EMAIL"); v != "" {
		c.Twitter.Email = v
	}
	if v := os.Getenv("TWITTER_PASSWORD"); v != "" {
		c.Twitter.Password = v
	}
	if v := os.Getenv("TWITTER_ID"); v != "" {
		c.Twitter.Username = v
	}
	if v := os.Getenv("XRANKING_DB_PATH"); v != "" {
		c.Database.Path = v
	}
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// DatabasePath resolves the effective SQLite path.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	return DefaultDatabasePath()
}
