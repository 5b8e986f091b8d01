// Package config provides centralized configuration management for the pipeline.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
	Metabase MetabaseConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// MaxUploadSize caps multipart CSV uploads in bytes (default: 32MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"33554432"`

	// MaxConcurrentOps limits pipeline operations running at once through the API (default: 2)
	MaxConcurrentOps int `env:"SERVER_MAX_CONCURRENT_OPS" default:"2"`

	// APIKeys protects the mutating /api routes when non-empty (comma-separated)
	APIKeys []string `env:"SERVER_API_KEYS"`
}

// DatabaseConfig holds database connection settings.
//
// URL wins when set. Otherwise the connection string is composed from the
// individual DB_* parts, which is how the data generator has always been run.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	Host     string `env:"DB_HOST" default:"localhost"`
	Port     int    `env:"DB_PORT" default:"5432"`
	Name     string `env:"DB_NAME" default:"dataengineering"`
	User     string `env:"DB_USER" default:"postgres"`
	Password string `env:"DB_PASSWORD" default:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" default:"disable"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout bounds the initial connect + ping (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// PipelineConfig holds settings for the extract/transform/load stages.
type PipelineConfig struct {
	// BatchSize is the maximum number of rows claimed per transform/load batch (default: 500)
	BatchSize int `env:"PIPELINE_BATCH_SIZE" default:"500"`

	// VariabilityThreshold is the value range above which an insight reports high variability (default: 100)
	VariabilityThreshold float64 `env:"PIPELINE_VARIABILITY_THRESHOLD" default:"100"`

	// TempPrefix marks fields dropped during cleaning (default: temp_)
	TempPrefix string `env:"PIPELINE_TEMP_PREFIX" default:"temp_"`

	// KeyCollision picks which value survives when two keys lower-case to the same name: first or last (default: last)
	KeyCollision string `env:"PIPELINE_KEY_COLLISION" default:"last"`

	// RunInterval runs transform+load periodically inside the server; 0 disables (default: 0s)
	RunInterval time.Duration `env:"PIPELINE_RUN_INTERVAL" default:"0s"`

	// HTTPTimeout is the timeout for API extraction requests (default: 30s)
	HTTPTimeout time.Duration `env:"PIPELINE_HTTP_TIMEOUT" default:"30s"`

	// OpTimeout bounds a single extract/transform/load/reset operation (default: 5m)
	OpTimeout time.Duration `env:"PIPELINE_OP_TIMEOUT" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text, json or pretty (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetabaseConfig holds defaults for the dashboard backup tool.
type MetabaseConfig struct {
	URL       string        `env:"METABASE_URL" default:"http://localhost:3000"`
	OutputDir string        `env:"METABASE_OUTPUT_DIR" default:"../exports"`
	Timeout   time.Duration `env:"METABASE_TIMEOUT" default:"30s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ConnString returns the PostgreSQL connection string, preferring URL.
func (c *DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}
