package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

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

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                string  `yaml:"port"`
	DatabaseURL         string  `yaml:"databaseURL"`
	LogLevel            string  `yaml:"logLevel"`
	OpenAIAPIKey        string  `yaml:"openaiAPIKey"`
	OpenAIBaseURL       string  `yaml:"openaiBaseURL"`
	CompletionModel     string  `yaml:"completionModel"`
	PerplexityAPIKey    string  `yaml:"perplexityAPIKey"`
	PerplexityBaseURL   string  `yaml:"perplexityBaseURL"`
	PerplexityModel     string  `yaml:"perplexityModel"`
	HistoryLimit        int     `yaml:"historyLimit"`
	MaxTokens           int     `yaml:"maxTokens"`
	Temperature         float64 `yaml:"temperature"`
	AuthJWKSURL         string  `yaml:"authJWKSURL"`
	JWTIssuer           string  `yaml:"jwtIssuer"`
	JWTAudience         string  `yaml:"jwtAudience"`
	RedisAddr           string  `yaml:"redisAddr"`
	RedisPassword       string  `yaml:"redisPassword"`
	RateLimitPerMinute  int     `yaml:"rateLimitPerMinute"`
	EmbeddingDim        int     `yaml:"embeddingDim"`
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
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("PERPLEXITY_API_KEY"); v != "" {
		cfg.PerplexityAPIKey = v
	}
	if v := os.Getenv("AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
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
	if cfg.OpenAIAPIKey == "" {
		return errors.New("config: openaiAPIKey is required (set in config.yaml or OPENAI_API_KEY)")
	}
	if cfg.CompletionModel == "" {
		return errors.New("config: completionModel is required (set in config.yaml)")
	}
	if cfg.AuthJWKSURL == "" {
		return errors.New("config: authJWKSURL is required (set in config.yaml or AUTH_JWKS_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml)")
	}
	return nil
}
