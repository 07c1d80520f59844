package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL       string
	Token        string
	DBPath       string
	PasswordSalt string
	SyncInterval time.Duration
	HTTPTimeout  time.Duration
	SentryDSN    string
}

// fileConfig is the optional YAML overlay named by GROUPSYNC_CONFIG.
// Environment variables win over values from the file.
type fileConfig struct {
	APIURL       string `yaml:"api_url"`
	Token        string `yaml:"token"`
	DBPath       string `yaml:"db_path"`
	PasswordSalt string `yaml:"password_salt"`
	SyncInterval string `yaml:"sync_interval"`
	HTTPTimeout  string `yaml:"http_timeout"`
	SentryDSN    string `yaml:"sentry_dsn"`
}

func Load() (*Config, error) {
	var fc fileConfig
	if path := os.Getenv("GROUPSYNC_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		APIURL:       lookup("GROUPSYNC_API_URL", fc.APIURL),
		Token:        lookup("GROUPSYNC_TOKEN", fc.Token),
		DBPath:       lookup("DB_PATH", fc.DBPath),
		PasswordSalt: lookup("GROUPSYNC_PASSWORD_SALT", fc.PasswordSalt),
		SentryDSN:    lookup("SENTRY_DSN", fc.SentryDSN),
	}

	if cfg.APIURL == "" {
		return nil, fmt.Errorf("GROUPSYNC_API_URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("GROUPSYNC_TOKEN is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("DB_PATH is required")
	}

	var err error
	cfg.SyncInterval, err = duration("GROUPSYNC_SYNC_INTERVAL", fc.SyncInterval, 0)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout, err = duration("GROUPSYNC_HTTP_TIMEOUT", fc.HTTPTimeout, 15*time.Second)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func lookup(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key, fallback string, def time.Duration) (time.Duration, error) {
	s := lookup(key, fallback)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
