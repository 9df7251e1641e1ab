// Package config loads the scheduler's runtime configuration from
// environment variables (with sane defaults) and an optional YAML overlay,
// using the same viper-based pattern as the retrieval pack's rag-loader
// config package.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete runtime configuration for the scheduler.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Queue      QueueConfig      `mapstructure:"queue"`
	TaskStore  TaskStoreConfig  `mapstructure:"taskstore"`
	Validation ValidationConfig `mapstructure:"validation"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BatchConfig holds batch-formation and dispatcher tuning.
type BatchConfig struct {
	MaxBatchSize         int           `mapstructure:"max_batch_size"`
	BatchWaitTimeout     time.Duration `mapstructure:"batch_wait_timeout"`
	MaxConcurrentBatches int           `mapstructure:"max_concurrent_batches"`
}

// EngineConfig holds Engine Adapter settings.
type EngineConfig struct {
	UseRealVLLM    bool          `mapstructure:"use_real_vllm"`
	RealVLLMURL    string        `mapstructure:"real_vllm_url"`
	RealVLLMModel  string        `mapstructure:"real_vllm_model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig holds bearer-token signing settings and the operator-provisioned
// credential set.
type AuthConfig struct {
	JWTSecretKey         string            `mapstructure:"jwt_secret_key"`
	JWTAlgorithm         string            `mapstructure:"jwt_algorithm"`
	JWTExpirationMinutes int               `mapstructure:"jwt_expiration_minutes"`
	Users                map[string]string `mapstructure:"-"`
}

// QueueConfig holds priority-queue capacity settings.
type QueueConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// TaskStoreConfig holds Task Store retention settings.
type TaskStoreConfig struct {
	RetentionSeconds int `mapstructure:"retention_seconds"`
	MaxRetained      int `mapstructure:"max_retained"`
}

// ValidationConfig holds request-validation bounds for the HTTP surface;
// the spec leaves the exact prompt length and batch item cap to the
// operator (§4.8 says only "configured max length" / "configurable cap").
type ValidationConfig struct {
	PromptMaxLength int `mapstructure:"prompt_max_length"`
	BatchMaxItems   int `mapstructure:"batch_max_items"`
}

// Load reads configuration from environment variables (which take
// precedence over both the YAML file and the SetDefault values), an optional
// YAML file named "batchsched" on the given search paths, and the defaults,
// and returns the populated Config.
// A missing config file is not an error: defaults and environment variables
// are sufficient to run.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("batchsched")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Auth.Users = parseUsers(v.GetString("auth.users"))

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("batch.max_batch_size", 32)
	v.SetDefault("batch.batch_wait_timeout", "100ms")
	v.SetDefault("batch.max_concurrent_batches", 4)

	v.SetDefault("engine.use_real_vllm", false)
	v.SetDefault("engine.real_vllm_url", "")
	v.SetDefault("engine.real_vllm_model", "")
	v.SetDefault("engine.request_timeout", "60s")

	v.SetDefault("auth.jwt_secret_key", "")
	v.SetDefault("auth.jwt_algorithm", "HS256")
	v.SetDefault("auth.jwt_expiration_minutes", 30)
	v.SetDefault("auth.users", "")

	v.SetDefault("queue.max_depth", 10000)

	v.SetDefault("taskstore.retention_seconds", 3600)
	v.SetDefault("taskstore.max_retained", 100000)

	v.SetDefault("validation.prompt_max_length", 4096)
	v.SetDefault("validation.batch_max_items", 100)
}

// bindEnvVars wires the environment variable names from the scheduler's
// external-interface contract to their mapstructure keys.
func bindEnvVars(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("batch.max_batch_size", "VLLM_MAX_BATCH_SIZE")
	_ = v.BindEnv("batch.batch_wait_timeout", "VLLM_BATCH_WAIT_TIMEOUT")
	_ = v.BindEnv("batch.max_concurrent_batches", "VLLM_MAX_CONCURRENT_BATCHES")

	_ = v.BindEnv("engine.use_real_vllm", "USE_REAL_VLLM")
	_ = v.BindEnv("engine.real_vllm_url", "REAL_VLLM_URL")
	_ = v.BindEnv("engine.real_vllm_model", "REAL_VLLM_MODEL")

	_ = v.BindEnv("auth.jwt_secret_key", "JWT_SECRET_KEY")
	_ = v.BindEnv("auth.jwt_algorithm", "JWT_ALGORITHM")
	_ = v.BindEnv("auth.jwt_expiration_minutes", "JWT_EXPIRATION_MINUTES")
	_ = v.BindEnv("auth.users", "AUTH_USERS")

	_ = v.BindEnv("queue.max_depth", "QUEUE_MAX_DEPTH")

	_ = v.BindEnv("taskstore.retention_seconds", "TASK_RETENTION_SECONDS")
	_ = v.BindEnv("taskstore.max_retained", "TASK_MAX_RETAINED")

	_ = v.BindEnv("validation.prompt_max_length", "PROMPT_MAX_LENGTH")
	_ = v.BindEnv("validation.batch_max_items", "BATCH_MAX_ITEMS")
}

// parseUsers parses AUTH_USERS as a comma-separated list of
// "username:password" pairs, the operator-provisioned credential set backing
// the Credential Verifier's opaque store.
func parseUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		username, password, ok := strings.Cut(pair, ":")
		if !ok || username == "" || password == "" {
			continue
		}
		users[username] = password
	}
	return users
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Batch.MaxBatchSize <= 0 {
		return fmt.Errorf("batch.max_batch_size must be positive")
	}
	if cfg.Batch.MaxConcurrentBatches <= 0 {
		return fmt.Errorf("batch.max_concurrent_batches must be positive")
	}
	if cfg.Engine.UseRealVLLM && cfg.Engine.RealVLLMURL == "" {
		return fmt.Errorf("engine.real_vllm_url is required when use_real_vllm is true")
	}
	if cfg.Auth.JWTSecretKey == "" {
		return fmt.Errorf("auth.jwt_secret_key is required")
	}
	if len(cfg.Auth.Users) == 0 {
		return fmt.Errorf("auth.users (AUTH_USERS) must configure at least one credential")
	}
	if cfg.Validation.PromptMaxLength <= 0 {
		return fmt.Errorf("validation.prompt_max_length must be positive")
	}
	if cfg.Validation.BatchMaxItems <= 0 {
		return fmt.Errorf("validation.batch_max_items must be positive")
	}
	return nil
}
