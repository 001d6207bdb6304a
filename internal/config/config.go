package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	// EnvProduction enables secure cookies and quiet logging.
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"

	// MinSecretLength is the minimum accepted JWT_SECRET length in bytes.
	MinSecretLength = 32

	// MinBCryptCost keeps password hashing at or above bcrypt cost 10.
	MinBCryptCost = 10
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Security   SecurityConfig
	CORS       CORSConfig
	Pagination PaginationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Address     string `env:"SERVER_ADDRESS" env-default:"0.0.0.0:3000"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN      string `env:"DATABASE_DSN"`
	MaxConns int    `env:"DB_MAX_CONNS" env-default:"25"`
	MinConns int    `env:"DB_MIN_CONNS" env-default:"5"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `env:"JWT_SECRET" env-required:"true"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BCryptCost int `env:"BCRYPT_COST" env-default:"10"`
}

// CORSConfig holds the allowed browser origin
type CORSConfig struct {
	FrontendURL string `env:"FRONTEND_URL" env-default:"http://localhost:3000"`
}

// PaginationConfig holds listing defaults
type PaginationConfig struct {
	DefaultLimit int `env:"DEFAULT_LIMIT" env-default:"10"`
	MaxLimit     int `env:"MAX_LIMIT" env-default:"100"`
}

// IsProduction reports whether the service runs in production mode
func (s ServerConfig) IsProduction() bool {
	return s.Environment == EnvProduction
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values cleanenv cannot express as tags
func (c *Config) Validate() error {
	switch c.Server.Environment {
	case EnvProduction, EnvDevelopment, EnvTest:
	default:
		return fmt.Errorf("ENVIRONMENT must be one of %s, %s, %s", EnvDevelopment, EnvProduction, EnvTest)
	}

	if len(c.JWT.Secret) < MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinSecretLength)
	}

	if c.Database.DSN == "" && c.Server.IsProduction() {
		return fmt.Errorf("DATABASE_DSN is required in production")
	}

	if c.Database.MaxConns < 1 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid database pool size: min=%d max=%d", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Security.BCryptCost < MinBCryptCost || c.Security.BCryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", MinBCryptCost, bcrypt.MaxCost)
	}

	if c.Pagination.DefaultLimit < 0 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fmt.Errorf("invalid pagination limits: default=%d max=%d", c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}

	return nil
}
