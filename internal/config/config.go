package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the narraitor service and CLI.
// Environment variables are parsed with the NARRAITOR_ prefix,
// e.g. NARRAITOR_HTTP_PORT, NARRAITOR_STORAGE_DRIVER.
type Config struct {
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Persistence adapter: memory, sqlite, redis or mysql
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"memory"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"./data/narraitor.db"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	MySQLDSN      string `envconfig:"MYSQL_DSN" default:""`

	// Text generation: openai, gemini or mock
	AIProvider     string  `envconfig:"AI_PROVIDER" default:"openai"`
	AIModel        string  `envconfig:"AI_MODEL" default:"gpt-4o"`
	AITemperature  float32 `envconfig:"AI_TEMPERATURE" default:"0.8"`
	AIMaxTokens    int     `envconfig:"AI_MAX_TOKENS" default:"2000"`
	OpenAIAPIKey   string  `envconfig:"OPENAI_API_KEY" default:""`
	GeminiAPIKey   string  `envconfig:"GEMINI_API_KEY" default:""`
	ImageModel     string  `envconfig:"IMAGE_MODEL" default:"dall-e-3"`
	PromptTemplate string  `envconfig:"PROMPT_TEMPLATES" default:""`

	// Ending generation retry policy
	EndingMaxAttempts int           `envconfig:"ENDING_MAX_ATTEMPTS" default:"3"`
	EndingRetryDelay  time.Duration `envconfig:"ENDING_RETRY_DELAY" default:"1s"`

	// Semantic lore recall; disabled when MilvusAddress is empty
	MilvusAddress      string `envconfig:"MILVUS_ADDRESS" default:""`
	MilvusCollection   string `envconfig:"MILVUS_COLLECTION" default:"narraitor_lore"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
}

var (
	allowedStorage  = map[string]bool{"memory": true, "sqlite": true, "redis": true, "mysql": true}
	allowedProvider = map[string]bool{"openai": true, "gemini": true, "mock": true}
)

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if !allowedStorage[c.StorageDriver] {
		return fmt.Errorf("unsupported STORAGE_DRIVER: %s", c.StorageDriver)
	}
	if !allowedProvider[c.AIProvider] {
		return fmt.Errorf("unsupported AI_PROVIDER: %s", c.AIProvider)
	}
	if c.StorageDriver == "mysql" && c.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is required when STORAGE_DRIVER=mysql")
	}
	if c.EndingMaxAttempts < 1 {
		return fmt.Errorf("ENDING_MAX_ATTEMPTS must be at least 1, got %d", c.EndingMaxAttempts)
	}
	return nil
}

// New loads .env (if present) and parses NARRAITOR_ environment variables.
func New() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("NARRAITOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting returns an in-memory, mock-provider configuration.
func NewForTesting() *Config {
	return &Config{
		HTTPPort:           8080,
		LogLevel:           "debug",
		StorageDriver:      "memory",
		AIProvider:         "mock",
		AIModel:            "mock",
		AIMaxTokens:        2000,
		EndingMaxAttempts:  3,
		EndingRetryDelay:   time.Millisecond,
		MilvusCollection:   "narraitor_lore_test",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
	}
}

// GetHTTPAddr returns the HTTP listen address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// LoreRecallEnabled reports whether a Milvus lore index is configured.
func (c *Config) LoreRecallEnabled() bool {
	return c.MilvusAddress != ""
}
