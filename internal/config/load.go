package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix namespaces the application's environment variables:
// server.port becomes NEUINK_SERVER_PORT.
const envPrefix = "NEUINK"

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables, with environment values taking
// precedence. Returns a populated Config struct or an error listing every
// validation violation.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; the environment can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers a default for every key. Required keys without a
// sensible default get an empty value so viper binds their environment
// variables; validation catches them when they stay empty.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_minutes", 30)
	v.SetDefault("database.connect_attempts", 5)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_output_tokens", 8192)
	v.SetDefault("llm.request_timeout_seconds", 60)

	v.SetDefault("ingestion.worker_count", 4)
	v.SetDefault("ingestion.queue_size", 32)
	v.SetDefault("ingestion.max_input_chars", 12000)
	v.SetDefault("ingestion.max_request_chars", 100000)

	v.SetDefault("cache.result_ttl_minutes", 10)
	v.SetDefault("cache.prune_interval_minutes", 1)
}

// validateConfig checks the populated struct and reports every violation at
// once rather than stopping at the first.
func validateConfig(cfg *Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
	}

	return fmt.Errorf("config validation failed: %w", err)
}
