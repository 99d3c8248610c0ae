package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm"       validate:"required"`
	Ingestion IngestionConfig `mapstructure:"ingestion" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url"                       validate:"required,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"            validate:"required,gt=0"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"            validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
	ConnectAttempts        int    `mapstructure:"connect_attempts"          validate:"required,gt=0"`
}

// ConnMaxLifetime returns the configured connection lifetime as a duration.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// LLMConfig contains all LLM integration related settings. One provider is
// active at a time, selected by Provider; the same key/model/limit settings
// apply to whichever is active.
type LLMConfig struct {
	Provider              string  `mapstructure:"provider"                validate:"required,oneof=gemini openai"`
	APIKey                string  `mapstructure:"api_key"                 validate:"required"`
	ModelName             string  `mapstructure:"model_name"              validate:"required"`
	Temperature           float64 `mapstructure:"temperature"             validate:"gte=0,lte=2"`
	MaxOutputTokens       int     `mapstructure:"max_output_tokens"       validate:"required,gt=0"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
}

// RequestTimeout returns the per-call timeout as a duration.
func (c LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// IngestionConfig bounds the ingestion pipeline: the worker pool, its queue,
// and the accepted input sizes. MaxRequestChars rejects oversized requests at
// the API; MaxInputChars silently truncates what is sent to the model.
type IngestionConfig struct {
	WorkerCount     int `mapstructure:"worker_count"      validate:"required,gt=0"`
	QueueSize       int `mapstructure:"queue_size"        validate:"required,gt=0"`
	MaxInputChars   int `mapstructure:"max_input_chars"   validate:"required,gt=0"`
	MaxRequestChars int `mapstructure:"max_request_chars" validate:"required,gt=0"`
}

// CacheConfig tunes the process-local splice result cache.
type CacheConfig struct {
	ResultTTLMinutes     int `mapstructure:"result_ttl_minutes"     validate:"required,gt=0"`
	PruneIntervalMinutes int `mapstructure:"prune_interval_minutes" validate:"required,gt=0"`
}

// ResultTTL returns the cache entry lifetime as a duration.
func (c CacheConfig) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLMinutes) * time.Minute
}

// PruneInterval returns the janitor wake-up interval as a duration.
func (c CacheConfig) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalMinutes) * time.Minute
}
