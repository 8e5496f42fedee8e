package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/alkime/micgraph/internal/graph"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"

	// envPrefix is prepended to every variable name, e.g. MICGRAPH_CHANNELS.
	envPrefix = "MICGRAPH"
)

// Config holds all application configuration.
type Config struct {
	Env string `envconfig:"ENV" default:"development"`

	// Capture settings
	Channels   int `envconfig:"CHANNELS" default:"1"`
	SampleRate int `envconfig:"SAMPLE_RATE" default:"48000"`

	// Graph settings
	UnderrunPolicy string `envconfig:"UNDERRUN_POLICY" default:"silence"`
	QueueLimit     int    `envconfig:"QUEUE_LIMIT" default:"0"`
	BlockSize      int    `envconfig:"BLOCK_SIZE" default:"512"`
	LegacyIdentity bool   `envconfig:"LEGACY_IDENTITY" default:"false"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional for development)
	if err := godotenv.Load(); err != nil {
		// Not an error if file doesn't exist
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	var config Config
	if err := envconfig.Process(envPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate returns an error if the config is invalid. A sample rate of 0 is
// allowed and means "use the default output device's rate".
func (c *Config) Validate() error {
	if c.Channels < 1 {
		return errors.New("channels must be positive")
	}

	if c.SampleRate < 0 {
		return errors.New("sample rate cannot be negative")
	}

	if c.QueueLimit < 0 {
		return errors.New("queue limit cannot be negative")
	}

	if c.BlockSize <= 0 {
		return errors.New("block size must be positive")
	}

	if _, err := graph.ParseUnderrunPolicy(c.UnderrunPolicy); err != nil {
		return err
	}

	return nil
}

// ManagerOptions translates the graph settings into manager options.
func (c *Config) ManagerOptions() []graph.ManagerOption {
	// Validate has already rejected unknown policies
	policy, _ := graph.ParseUnderrunPolicy(c.UnderrunPolicy)

	opts := []graph.ManagerOption{
		graph.WithNodeUnderrunPolicy(policy),
		graph.WithQueueLimit(c.QueueLimit),
	}

	if c.LegacyIdentity {
		opts = append(opts, graph.WithLegacyIdentity())
	}

	return opts
}
