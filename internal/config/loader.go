package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "config.yaml"

// ErrMissingDatabaseURL is returned when the postgres driver has no DSN.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is not set")

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port: 3001,
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			MaxConns:        10,
			MaxConnIdleTime: 20 * time.Second,
			ConnectTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "logs/dashboard.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		CORS: CORSConfig{AllowOrigins: []string{"*"}},
		ExchangeRate: ExchangeRateConfig{
			URL:      "https://open.er-api.com/v6/latest/USD",
			TTL:      time.Hour,
			Fallback: 35,
			Timeout:  10 * time.Second,
		},
		OCR: OCRConfig{
			Path:             "/api/ocr",
			Method:           "POST",
			InputPerMillion:  0.30,
			OutputPerMillion: 2.50,
		},
		Analytics: AnalyticsConfig{
			CacheMaxEntries: 1024,
			Timezone:        "UTC",
			MaxDays:         365,
		},
	}
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy defaults < YAML < ENV. The YAML file is optional. A .env file in
// the working directory is loaded first; it never overrides variables that
// are already set.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}
	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setInt(&cfg.Port, "PORT")
	setInt(&cfg.Port, "API_PORT")
	setString(&cfg.Host, "API_HOST")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.ExchangeRate.URL, "EXCHANGE_RATE_URL")
	setString(&cfg.Analytics.Timezone, "TZ_DASHBOARD")

	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		origins := lo.Compact(lo.Map(strings.Split(v, ","), func(o string, _ int) string {
			return strings.TrimSpace(o)
		}))
		if len(origins) > 0 {
			cfg.CORS.AllowOrigins = origins
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func validate(cfg *Config) error {
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.DSN == "" {
			return ErrMissingDatabaseURL
		}
	case DriverSQLite:
		if cfg.Database.DSN == "" {
			cfg.Database.DSN = "data/analytics.db"
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range", cfg.Port)
	}
	if cfg.Database.MaxConns <= 0 {
		return errors.New("database.max-conns must be positive")
	}
	if _, err := cfg.Analytics.Location(); err != nil {
		return fmt.Errorf("analytics.timezone: %w", err)
	}
	for _, origin := range cfg.CORS.AllowOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("cors.allow-origins: %q must be \"*\" or start with http:// or https://", origin)
		}
	}
	if cfg.OCR.InputPerMillion < 0 || cfg.OCR.OutputPerMillion < 0 {
		return errors.New("ocr token prices must not be negative")
	}
	return nil
}
