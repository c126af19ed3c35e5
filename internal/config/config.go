// Package config loads application configuration from files and
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/diapredict-server/internal/domain"
)

// Manager loads and validates the application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/diapredict-server/")

	viper.SetEnvPrefix("DIAPREDICT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars carry the rest
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit", 50)
	viper.SetDefault("server.rate_burst", 100)

	// Model service defaults
	viper.SetDefault("model.base_url", "http://localhost:9000")
	viper.SetDefault("model.timeout", "10s")
	viper.SetDefault("model.cache_size", 512)
	viper.SetDefault("model.breaker_max_fails", 5)
	viper.SetDefault("model.breaker_interval", "30s")
	viper.SetDefault("model.breaker_open_period", "60s")

	// Storage defaults
	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/evaluations.db")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", 5432)
	viper.SetDefault("storage.postgres.database", "diapredict")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "")
	viper.SetDefault("storage.postgres.ssl_mode", "disable")
	viper.SetDefault("storage.postgres.max_conns", 25)
	viper.SetDefault("storage.postgres.min_conns", 5)
	viper.SetDefault("storage.postgres.conn_max_lifetime", "5m")
	viper.SetDefault("storage.postgres.conn_max_idle_time", "5m")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetModelConfig returns the prediction service configuration
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.config.Model
}

// GetStorageConfig returns storage configuration
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Model.BaseURL == "" {
		return fmt.Errorf("model base URL is required")
	}

	switch config.Storage.Driver {
	case "sqlite":
		if config.Storage.SQLite.Path == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case "postgres":
		if config.Storage.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if config.Storage.Postgres.Database == "" {
			return fmt.Errorf("postgres database name is required")
		}
		if config.Storage.Postgres.Username == "" {
			return fmt.Errorf("postgres username is required")
		}
	case "none":
		// History persistence disabled
	default:
		return fmt.Errorf("unknown storage driver: %s", config.Storage.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
