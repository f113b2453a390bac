package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"NR_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NR_DB_MAX_CONNS" default:"8"`

	EmbeddingEndpoint   string        `envconfig:"EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingAPIKey     string        `envconfig:"EMBEDDING_API_KEY" default:""`
	EmbeddingTimeout    time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"45s"`
	EmbeddingCallDelay  time.Duration `envconfig:"EMBEDDING_CALL_DELAY" default:"1500ms"`
	EmbeddingMaxRetries int           `envconfig:"EMBEDDING_MAX_RETRIES" default:"3"`

	LLMEndpoint string        `envconfig:"LLM_ENDPOINT" default:""`
	LLMAPIKey   string        `envconfig:"LLM_API_KEY" default:""`
	LLMModel    string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMTimeout  time.Duration `envconfig:"LLM_TIMEOUT" default:"20s"`

	PrioritySources string `envconfig:"PRIORITY_SOURCES" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("NR_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NR_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NR_DB_MIN_CONNS (%d) cannot exceed NR_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.EmbeddingEndpoint) == "" {
		return fmt.Errorf("EMBEDDING_ENDPOINT is required")
	}
	if c.EmbeddingMaxRetries < 1 {
		return fmt.Errorf("EMBEDDING_MAX_RETRIES must be >= 1")
	}
	if c.EmbeddingCallDelay < 0 {
		return fmt.Errorf("EMBEDDING_CALL_DELAY must be >= 0")
	}
	return nil
}

// PrioritySourcesList returns the configured aggregator-style sources whose
// items win exact-duplicate ties over per-site feeds.
func (c *Config) PrioritySourcesList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.PrioritySources, ",")
	sources := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		source := strings.ToLower(strings.TrimSpace(part))
		if source == "" {
			continue
		}
		if _, exists := seen[source]; exists {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	return sources
}
