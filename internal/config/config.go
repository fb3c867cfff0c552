// Package config provides configuration management for the analytics dashboard
// backend. It loads an optional YAML file over built-in defaults and lets
// environment variables (including a .env file) override both.
package config

import "time"

// Driver names accepted in DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the complete application configuration.
type Config struct {
	// Host is the interface the HTTP server binds to. Empty means all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the HTTP listen port.
	Port int `yaml:"port" json:"port"`

	// Debug enables gin debug mode and debug level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// Database configures the event store connection.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configures log level, format and optional file output.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// CORS configures cross-origin access to the API.
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// ExchangeRate configures the USD to THB rate provider.
	ExchangeRate ExchangeRateConfig `yaml:"exchange-rate" json:"exchange-rate"`

	// OCR identifies the OCR endpoint and its token prices.
	OCR OCRConfig `yaml:"ocr" json:"ocr"`

	// Analytics tunes the aggregation layer.
	Analytics AnalyticsConfig `yaml:"analytics" json:"analytics"`
}

// DatabaseConfig holds event store connection settings.
type DatabaseConfig struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver string `yaml:"driver" json:"driver"`

	// DSN is the PostgreSQL connection URL or the SQLite file path.
	// Overridden by DATABASE_URL.
	DSN string `yaml:"dsn" json:"-"`

	// MaxConns caps the connection pool.
	MaxConns int32 `yaml:"max-conns" json:"max-conns"`

	// MaxConnIdleTime closes connections idle for longer than this.
	MaxConnIdleTime time.Duration `yaml:"max-conn-idle-time" json:"max-conn-idle-time"`

	// MaxConnLifetime recycles connections older than this. Zero keeps the driver default.
	MaxConnLifetime time.Duration `yaml:"max-conn-lifetime" json:"max-conn-lifetime"`

	// ConnectTimeout bounds establishing a new connection.
	ConnectTimeout time.Duration `yaml:"connect-timeout" json:"connect-timeout"`

	// AutoMigrate creates missing event tables at startup.
	AutoMigrate bool `yaml:"auto-migrate" json:"auto-migrate"`
}

// LoggingConfig holds logrus settings.
type LoggingConfig struct {
	// Level is a logrus level name such as "info" or "debug".
	Level string `yaml:"level" json:"level"`

	// Format is "text" (default) or "json".
	Format string `yaml:"format" json:"format"`

	// ToFile writes logs to File with rotation instead of stdout.
	ToFile bool `yaml:"to-file" json:"to-file"`

	// File is the log file path used when ToFile is set.
	File string `yaml:"file" json:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `yaml:"max-size-mb" json:"max-size-mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `yaml:"max-backups" json:"max-backups"`

	// MaxAgeDays removes rotated files older than this.
	MaxAgeDays int `yaml:"max-age-days" json:"max-age-days"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. "*" allows any origin.
	AllowOrigins []string `yaml:"allow-origins" json:"allow-origins"`
}

// ExchangeRateConfig holds exchange rate provider settings.
type ExchangeRateConfig struct {
	// URL is the open.er-api.com compatible endpoint with USD as base.
	URL string `yaml:"url" json:"url"`

	// TTL is how long a fetched rate is served before refreshing.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// Fallback is the rate used when no rate could ever be fetched.
	Fallback float64 `yaml:"fallback" json:"fallback"`

	// Timeout bounds one upstream request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// SnapshotPath persists the last good rate across restarts. Empty disables it.
	SnapshotPath string `yaml:"snapshot-path" json:"snapshot-path"`

	// RefreshInterval refreshes the rate in the background. Zero disables it.
	RefreshInterval time.Duration `yaml:"refresh-interval" json:"refresh-interval"`
}

// OCRConfig identifies OCR traffic and prices its tokens.
type OCRConfig struct {
	// Path is the request path of the OCR endpoint in RequestLog.
	Path string `yaml:"path" json:"path"`

	// Method is the HTTP method of the OCR endpoint.
	Method string `yaml:"method" json:"method"`

	// InputPerMillion is the USD price of one million input tokens.
	InputPerMillion float64 `yaml:"input-per-million" json:"input-per-million"`

	// OutputPerMillion is the USD price of one million output tokens.
	OutputPerMillion float64 `yaml:"output-per-million" json:"output-per-million"`
}

// AnalyticsConfig tunes the aggregation layer.
type AnalyticsConfig struct {
	// CacheTTL memoizes aggregation results. Zero disables caching.
	CacheTTL time.Duration `yaml:"cache-ttl" json:"cache-ttl"`

	// CacheMaxEntries bounds the number of cached results.
	CacheMaxEntries int64 `yaml:"cache-max-entries" json:"cache-max-entries"`

	// Timezone is the IANA location calendar dates are interpreted in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// MaxDays caps relative "last N days" windows.
	MaxDays int `yaml:"max-days" json:"max-days"`
}

// Location resolves Timezone, defaulting to UTC.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "UTC" {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}
