// Package config loads server settings from the environment. A .env file in
// the working directory is read first if present.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. MENJAVA_DB.
const Prefix = "menjava"

// Config holds all settings. Command-line flags override DB, Addr and Log.
type Config struct {
	DB   string `envconfig:"DB" default:"menjava.db" validate:"required"`
	Addr string `envconfig:"ADDR" default:":8080" validate:"required"`
	Log  string `envconfig:"LOG"`

	TransferMode string `envconfig:"TRANSFER_MODE" default:"atomic" validate:"oneof=atomic two-phase"`
	Realtime     string `envconfig:"REALTIME" default:"memory" validate:"oneof=memory redis"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required_if=Realtime redis"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0" validate:"min=0"`
	PresenceTTL   time.Duration `envconfig:"PRESENCE_TTL" default:"30s" validate:"gt=0"`

	TokenExpiry     time.Duration `envconfig:"TOKEN_EXPIRY" default:"168h" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings after flags have been applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
