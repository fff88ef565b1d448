package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Store struct {
		// Driver is "postgres" or "sqlite".
		Driver string `yaml:"driver" env:"STORE_DRIVER"`
		DSN    string `yaml:"dsn" env:"DATABASE_URL"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`
	Postgres struct {
		// URL enables the pgx catalog loader; it usually matches Store.DSN.
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Catalog struct {
		TTL  string `yaml:"ttl" env:"CATALOG_TTL"`
		File string `yaml:"file" env:"CATALOG_FILE"`
	} `yaml:"catalog"`
	Lock struct {
		// Backend is "memory" or "redis".
		Backend string `yaml:"backend" env:"LOCK_BACKEND"`
		Lease   string `yaml:"lease" env:"LOCK_LEASE"`
	} `yaml:"lock"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`
}

// Load reads YAML config from path, then applies a .env file if one exists and
// finally environment variables. A missing YAML file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
