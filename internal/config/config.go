package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port             int           `envconfig:"PORT" default:"8080"`
	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	DBMaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"20"`
	StoreDriver      string        `envconfig:"STORE_DRIVER" default:"postgres"`
	RedisURL         string        `envconfig:"REDIS_URL"`
	MovementCacheTTL time.Duration `envconfig:"MOVEMENT_CACHE_TTL" default:"10m"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat        string        `envconfig:"LOG_FORMAT"`
	LogOutput        string        `envconfig:"LOG_OUTPUT" default:"stdout"`
	AppEnv           string        `envconfig:"APP_ENV" default:"development"`
}

// Load reads ./.env when present and then the process environment. Values
// already set in the environment win over the file.
func Load() (Config, error) {
	return LoadFrom(filepath.Join(".", ".env"))
}

func LoadFrom(envPath string) (Config, error) {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envPath, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.Production() {
			cfg.LogFormat = "json"
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres (environment variable or .env)")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %q (want postgres or memory)", c.StoreDriver)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("invalid DB_MAX_CONNS: %d", c.DBMaxConns)
	}
	if c.MovementCacheTTL < 0 {
		return fmt.Errorf("invalid MOVEMENT_CACHE_TTL: %s", c.MovementCacheTTL)
	}
	return nil
}

// Production reports APP_ENV=production, which switches the default log
// format to json.
func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
