package config

import (
	"fmt"
	"time"
)

// Database drivers understood by the server.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Events     EventsConfig     `mapstructure:"events" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite memory"`
	// URL is a PostgreSQL connection string or a SQLite file path/DSN.
	URL          string `mapstructure:"url" validate:"required_unless=Driver memory"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	// SeedAccounts populates the account directory at startup. Only the
	// memory driver applies it; SQL databases are provisioned externally.
	SeedAccounts []AccountSeed `mapstructure:"seed_accounts" validate:"omitempty,dive"`
}

// AccountSeed describes one account created when the memory backend starts.
type AccountSeed struct {
	UserID string `mapstructure:"user_id" validate:"required,uuid"`
	Name   string `mapstructure:"name" validate:"required,max=100"`
	Group  string `mapstructure:"group" validate:"max=100"`
}

// AuthConfig contains the bearer-token settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}

// GenerationConfig bounds task generation.
type GenerationConfig struct {
	DefaultCycles     int    `mapstructure:"default_cycles" validate:"gte=1,ltefield=MaxCycles"`
	MaxCycles         int    `mapstructure:"max_cycles" validate:"gte=1"`
	SearchHorizonDays int    `mapstructure:"search_horizon_days" validate:"gte=1"`
	Timezone          string `mapstructure:"timezone" validate:"required"`
}

// Location resolves the configured timezone, which defines "today".
func (g GenerationConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", g.Timezone, err)
	}
	return loc, nil
}

// EventsConfig sizes the asynchronous task event dispatcher.
type EventsConfig struct {
	Workers   int `mapstructure:"workers" validate:"gte=1"`
	QueueSize int `mapstructure:"queue_size" validate:"gte=1"`
}
