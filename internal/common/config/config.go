// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	LLM           LLMConfig          `mapstructure:"llm"`
	Retrieval     RetrievalConfig    `mapstructure:"retrieval"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Domain Configuration Sections ---

// LLMConfig holds settings for the completion provider.
type LLMConfig struct {
	BaseURL            string  `mapstructure:"base_url"`
	APIKey             string  `mapstructure:"api_key"`
	Timeout            int     `mapstructure:"timeout"` // milliseconds
	MaxRetries         int     `mapstructure:"max_retries"`
	DefaultModel       string  `mapstructure:"default_model"`
	DefaultTemperature float64 `mapstructure:"default_temperature"`
	DefaultMaxTokens   int     `mapstructure:"default_max_tokens"`
}

// RetrievalConfig holds settings for the document retriever.
type RetrievalConfig struct {
	Index       string `mapstructure:"index"`
	TopK        int    `mapstructure:"top_k"`
	Timeout     int    `mapstructure:"timeout"`       // milliseconds
	CacheTTLSec int    `mapstructure:"cache_ttl_sec"` // 0 disables the cache
}

// PipelineConfig holds tunables for the generation services.
type PipelineConfig struct {
	BulkConcurrency      int `mapstructure:"bulk_concurrency"`
	CompressionBatchSize int `mapstructure:"compression_batch_size"`
	CompressionPauseMs   int `mapstructure:"compression_pause_ms"`
	CompressionMaxTokens int `mapstructure:"compression_max_tokens"`
	SweepIntervalSec     int `mapstructure:"sweep_interval_sec"`      // 0 disables the sweep loop
	SweepLimit           int `mapstructure:"sweep_limit"`
	CleanupOlderThanDays int `mapstructure:"cleanup_older_than_days"`
	CleanupIntervalSec   int `mapstructure:"cleanup_interval_sec"`    // 0 disables the cleanup loop
	TemplateCacheTTLSec  int `mapstructure:"template_cache_ttl_sec"`
}

// NotificationConfig holds settings for generation completion notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
