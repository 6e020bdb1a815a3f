package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location; CONFIG_PATH overrides it.
var ConfigPath = configPathFromEnv()

func configPathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("CONFIG_PATH")); v != "" {
		return v
	}
	return "config.yaml"
}

// SourceConfig is one watched legal source.
type SourceConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port            string         `yaml:"port"`
	DatabaseURL     string         `yaml:"databaseURL"`
	LogLevel        string         `yaml:"logLevel"`
	AMQPURL         string         `yaml:"amqpURL"`
	AMQPExchange    string         `yaml:"amqpExchange"`
	CrawlInterval   time.Duration  `yaml:"crawlInterval"`
	Sources         []SourceConfig `yaml:"sources"`
	AuthJWKSURL     string         `yaml:"authJWKSURL"`
	JWTIssuer       string         `yaml:"jwtIssuer"`
	JWTAudience     string         `yaml:"jwtAudience"`

	// Optional internal-scheduler auth for the /crawl trigger.
	ServiceTokenPublicKey string   `yaml:"serviceTokenPublicKey"`
	ServiceTokenAudience  string   `yaml:"serviceTokenAudience"`
	ServiceTokenIssuers   []string `yaml:"serviceTokenIssuers"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("SERVICE_TOKEN_PUBLIC_KEY"); v != "" {
		cfg.ServiceTokenPublicKey = v
	}
	if cfg.ServiceTokenAudience == "" {
		cfg.ServiceTokenAudience = "crawler"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if cfg.AMQPURL == "" {
		return errors.New("config: amqpURL is required (set in config.yaml or AMQP_URL)")
	}
	if cfg.AuthJWKSURL == "" {
		return errors.New("config: authJWKSURL is required (set in config.yaml or AUTH_JWKS_URL)")
	}
	for i, src := range cfg.Sources {
		if strings.TrimSpace(src.URL) == "" {
			return fmt.Errorf("config: sources[%d].url is required", i)
		}
	}
	return nil
}
