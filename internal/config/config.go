// Package config defines and loads the application configuration.
package config

import "time"

// Config holds all application configuration, organized into logical groups.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Search   SearchConfig   `mapstructure:"search"   validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// SearchConfig selects and configures the full-text index backend.
// The elasticsearch backend talks to an engine at URL; the bleve backend
// embeds the index at Path (in-memory when Path is empty).
type SearchConfig struct {
	Backend string        `mapstructure:"backend" validate:"required,oneof=elasticsearch bleve"`
	URL     string        `mapstructure:"url"     validate:"required_if=Backend elasticsearch,omitempty,url"`
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WorkerConfig contains worker runtime settings.
type WorkerConfig struct {
	Count        int           `mapstructure:"count"         validate:"required,gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required,gt=0"`
	StaleAfter   time.Duration `mapstructure:"stale_after"   validate:"required,gt=0"`
}
