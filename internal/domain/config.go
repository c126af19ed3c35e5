package domain

import (
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Model   ModelConfig   `mapstructure:"model"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// ModelConfig represents the external prediction service configuration.
type ModelConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CacheSize         int           `mapstructure:"cache_size"`
	BreakerMaxFails   uint32        `mapstructure:"breaker_max_fails"`
	BreakerInterval   time.Duration `mapstructure:"breaker_interval"`
	BreakerOpenPeriod time.Duration `mapstructure:"breaker_open_period"`
}

// StorageConfig represents evaluation-history storage configuration.
// Driver is "sqlite" or "postgres".
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig represents the embedded store configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig represents the PostgreSQL store configuration.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
