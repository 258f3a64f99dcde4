// Package config provides configuration handling for reelflow.
//
// The configuration is an immutable value built once at startup and passed
// explicitly to every component constructor; nothing reads it through a
// global registry.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Queue configuration
	Queue QueueConfig `json:"queue"`

	// Engine configuration
	Engine EngineConfig `json:"engine"`

	// LLM provider configuration
	LLM LLMConfig `json:"llm"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Schedules are cron-triggered pipeline runs started at boot
	Schedules []ScheduleConfig `json:"schedules,omitempty"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host"`

	// Port to listen on
	Port int `json:"port"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	// Type of storage to use
	Type string `json:"type"` // "memory", "postgres", "dynamodb"

	// Postgres configuration
	Postgres PostgresConfig `json:"postgres"`

	// DynamoDB configuration
	DynamoDB DynamoDBConfig `json:"dynamodb"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	// Host is the database host
	Host string `json:"host"`

	// Port is the database port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// User is the database user
	User string `json:"user"`

	// Password is the database password
	Password string `json:"password"`

	// SSLMode is the SSL mode
	SSLMode string `json:"ssl_mode"`
}

// DynamoDBConfig contains DynamoDB settings
type DynamoDBConfig struct {
	// Region is the AWS region
	Region string `json:"region"`

	// Endpoint is the DynamoDB endpoint (for local development)
	Endpoint string `json:"endpoint"`

	// TablePrefix is the prefix for all tables
	TablePrefix string `json:"table_prefix"`
}

// QueueConfig contains task queue settings
type QueueConfig struct {
	// Type of queue to use
	Type string `json:"type"` // "memory", "redis"

	// Redis configuration
	Redis RedisConfig `json:"redis"`

	// WorkerCount is the size of the task worker pool
	WorkerCount int `json:"worker_count"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	// Addr is the host:port of the Redis server
	Addr string `json:"addr"`

	// Password for the Redis server
	Password string `json:"password"`

	// DB is the Redis database number
	DB int `json:"db"`

	// KeyPrefix namespaces all queue keys
	KeyPrefix string `json:"key_prefix"`
}

// EngineConfig contains pipeline execution settings
type EngineConfig struct {
	// TickInterval is the delay between coordinator scheduling passes
	TickInterval time.Duration `json:"tick_interval"`

	// NodeMaxAttempts is the retry budget for one node execution task
	NodeMaxAttempts int `json:"node_max_attempts"`

	// HTTPTimeout bounds outbound http_request node calls
	HTTPTimeout time.Duration `json:"http_timeout"`

	// LLMTimeout bounds outbound llm node calls
	LLMTimeout time.Duration `json:"llm_timeout"`
}

// LLMConfig contains chat-completion provider settings
type LLMConfig struct {
	// DefaultProvider is used when a node names no provider
	DefaultProvider string `json:"default_provider"`

	// Providers maps a provider name to its settings
	Providers map[string]LLMProviderConfig `json:"providers"`
}

// LLMProviderConfig contains per-provider settings
type LLMProviderConfig struct {
	// APIKey authenticates against the provider
	APIKey string `json:"api_key"`

	// BaseURL overrides the provider's default endpoint
	BaseURL string `json:"base_url,omitempty"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	// Level is the logging level
	Level string `json:"level"` // "debug", "info", "warn", "error"

	// Format is the log format
	Format string `json:"format"` // "json", "text"
}

// ScheduleConfig describes a cron-triggered pipeline run
type ScheduleConfig struct {
	// PipelineID is the pipeline to run
	PipelineID string `json:"pipeline_id"`

	// Cron is the cron expression
	Cron string `json:"cron"`

	// Input is the run input data
	Input map[string]interface{} `json:"input,omitempty"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides()

	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "reelflow",
				User:     "reelflow",
				SSLMode:  "disable",
			},
			DynamoDB: DynamoDBConfig{
				Region:      "us-west-2",
				TablePrefix: "reelflow_",
			},
		},
		Queue: QueueConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "reelflow",
			},
			WorkerCount: 8,
		},
		Engine: EngineConfig{
			TickInterval:    3 * time.Second,
			NodeMaxAttempts: 5,
			HTTPTimeout:     30 * time.Second,
			LLMTimeout:      60 * time.Second,
		},
		LLM: LLMConfig{
			DefaultProvider: "openrouter",
			Providers:       map[string]LLMProviderConfig{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvOverrides lets environment variables win over file values, so that
// credentials never need to live in the config file
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REELFLOW_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("REELFLOW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("REELFLOW_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("REELFLOW_QUEUE_TYPE"); v != "" {
		c.Queue.Type = v
	}
	if v := os.Getenv("REELFLOW_REDIS_ADDR"); v != "" {
		c.Queue.Redis.Addr = v
	}
	if v := os.Getenv("REELFLOW_POSTGRES_PASSWORD"); v != "" {
		c.Storage.Postgres.Password = v
	}
	if v := os.Getenv("REELFLOW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	for _, provider := range []string{"openrouter", "openai", "anthropic"} {
		env := "REELFLOW_" + toEnvKey(provider) + "_API_KEY"
		if v := os.Getenv(env); v != "" {
			if c.LLM.Providers == nil {
				c.LLM.Providers = map[string]LLMProviderConfig{}
			}
			pc := c.LLM.Providers[provider]
			pc.APIKey = v
			c.LLM.Providers[provider] = pc
		}
	}
}

func toEnvKey(provider string) string {
	out := make([]rune, 0, len(provider))
	for _, r := range provider {
		if r >= 'a' && r <= 'z' {
			r = r - 'a' + 'A'
		}
		out = append(out, r)
	}
	return string(out)
}
