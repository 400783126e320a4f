// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Index     IndexConfig     `mapstructure:"index"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// RouteTTL is the route-classification cache lifetime in seconds.
	RouteTTL int `mapstructure:"route_ttl"`
}

// --- Domain Configuration Sections ---

// ReasoningConfig holds settings for the external reasoning service.
type ReasoningConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
	Model      string `mapstructure:"model"`
}

// CatalogConfig points at the tool catalog source.
type CatalogConfig struct {
	// Source is "static" or "file".
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
	// RefreshSeconds controls how often the file provider re-reads the
	// catalog; 0 disables refresh.
	RefreshSeconds int `mapstructure:"refresh_seconds"`
}

// IndexConfig holds settings for the embedded intent phrase index.
type IndexConfig struct {
	// Path of the bleve index directory; empty selects an in-memory index.
	Path string `mapstructure:"path"`
	// MinConfidence below which a fast-path match is discarded.
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
