// Package config handles configuration loading, parsing, and validation
// from environment variables (KEEPER_ prefix) and an optional config.yaml.
// It provides type-safe access to server, database, auth and generation
// settings while keeping configuration details separate from business logic.
package config
