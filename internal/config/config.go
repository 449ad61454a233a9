package config

import (
	"fmt"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the policy service.
type Config struct {
	Server   ServerConfig
	DynamoDB DynamoDBConfig
	Authz    AuthzConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DynamoDBConfig holds the policy table configuration.
type DynamoDBConfig struct {
	TableName string `env:"DYNAMODB_TABLE" envDefault:"casbin_policies"`
	Region    string `env:"AWS_REGION"`
	Endpoint  string `env:"DYNAMODB_ENDPOINT"` // Override for DynamoDB Local (e.g. http://localhost:8000)
}

// AuthzConfig holds enforcement configuration.
type AuthzConfig struct {
	ModelPath string `env:"AUTHZ_MODEL_PATH" envDefault:"examples/rbac_model.conf"`
	Mode      string `env:"AUTHZ_MODE" envDefault:"enforce"`
	APIKey    string `env:"ADMIN_API_KEY"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.DynamoDB); err != nil {
		return nil, fmt.Errorf("parsing dynamodb config: %w", err)
	}
	if err := env.Parse(&cfg.Authz); err != nil {
		return nil, fmt.Errorf("parsing authz config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DynamoDB.TableName == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required")
	}
	if c.DynamoDB.Region == "" && c.DynamoDB.Endpoint == "" {
		return fmt.Errorf("AWS_REGION is required (or set DYNAMODB_ENDPOINT for DynamoDB Local)")
	}
	if c.Authz.ModelPath == "" {
		return fmt.Errorf("AUTHZ_MODEL_PATH is required")
	}
	if c.Authz.APIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is required")
	}

	switch c.Authz.Mode {
	case "enforce", "shadow", "disabled":
	default:
		return fmt.Errorf("AUTHZ_MODE must be one of enforce, shadow, disabled")
	}

	return nil
}
