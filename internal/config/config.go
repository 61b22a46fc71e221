package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. STUDY_SCHEDULER_STORE_BASE_URL
const EnvPrefix = "STUDY_SCHEDULER"

// AuthConfig holds OAuth2 client credentials for the store API.
// Leaving ClientID empty disables authentication.
type AuthConfig struct {
	TokenURL     string   `yaml:"tokenURL" envconfig:"TOKEN_URL" validate:"omitempty,url"`
	ClientID     string   `yaml:"clientID" envconfig:"CLIENT_ID"`
	ClientSecret string   `yaml:"clientSecret" envconfig:"CLIENT_SECRET" validate:"required_with=ClientID"`
	Scopes       []string `yaml:"scopes,omitempty" envconfig:"SCOPES"`
}

// Enabled reports whether client credentials are configured
func (a AuthConfig) Enabled() bool {
	return a.ClientID != ""
}

// SettleConfig bounds the poll-until-verified loop used after association mutations
type SettleConfig struct {
	PollInterval time.Duration `yaml:"pollInterval" envconfig:"POLL_INTERVAL"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// RetryConfig controls retries of association store calls on transport failures
type RetryConfig struct {
	Attempts  int           `yaml:"attempts" envconfig:"ATTEMPTS" validate:"min=1"`
	BaseDelay time.Duration `yaml:"baseDelay" envconfig:"BASE_DELAY"`
}

// RedisConfig enables the distributed volunteer lock when Addr is set
type RedisConfig struct {
	Addr     string        `yaml:"addr,omitempty" envconfig:"ADDR" validate:"omitempty,hostname_port"`
	Password string        `yaml:"password,omitempty" envconfig:"PASSWORD"`
	DB       int           `yaml:"db,omitempty" envconfig:"DB" validate:"min=0"`
	LockTTL  time.Duration `yaml:"lockTTL,omitempty" envconfig:"LOCK_TTL"`
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Config represents the application configuration
type Config struct {
	StoreBaseURL     string        `yaml:"storeBaseURL" envconfig:"STORE_BASE_URL" validate:"required,url"`
	StoreTimeout     time.Duration `yaml:"storeTimeout" envconfig:"STORE_TIMEOUT"`
	Auth             AuthConfig    `yaml:"auth,omitempty" envconfig:"AUTH"`
	Settle           SettleConfig  `yaml:"settle,omitempty" envconfig:"SETTLE"`
	Retry            RetryConfig   `yaml:"retry,omitempty" envconfig:"RETRY"`
	BatchConcurrency int           `yaml:"batchConcurrency,omitempty" envconfig:"BATCH_CONCURRENCY" validate:"min=1,max=64"`
	RefDataTTL       time.Duration `yaml:"refDataTTL,omitempty" envconfig:"REF_DATA_TTL"`
	Redis            RedisConfig   `yaml:"redis,omitempty" envconfig:"REDIS"`
	DatabaseURL      string        `yaml:"databaseURL,omitempty" envconfig:"DATABASE_URL"`
	MetricsAddr      string        `yaml:"metricsAddr,omitempty" envconfig:"METRICS_ADDR"`
}

// Defaults applied to fields left empty in the config file
const (
	DefaultStoreTimeout     = 20 * time.Second
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultSettleTimeout    = 5 * time.Second
	DefaultRetryAttempts    = 3
	DefaultRetryBaseDelay   = 200 * time.Millisecond
	DefaultBatchConcurrency = 4
	DefaultRefDataTTL       = 5 * time.Minute
	DefaultLockTTL          = 30 * time.Second
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration for an environment.
// For example, env="test" looks for "study_scheduler.test.yaml"
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads the configuration from a specific path, applies
// defaults and environment overrides, then validates it
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Auth.Enabled() && cfg.Auth.TokenURL == "" {
		return fmt.Errorf("config validation failed: auth.tokenURL is required when auth.clientID is set")
	}

	if cfg.Settle.PollInterval > cfg.Settle.Timeout {
		return fmt.Errorf("config validation failed: settle.pollInterval (%s) exceeds settle.timeout (%s)",
			cfg.Settle.PollInterval, cfg.Settle.Timeout)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Settle.PollInterval == 0 {
		cfg.Settle.PollInterval = DefaultPollInterval
	}
	if cfg.Settle.Timeout == 0 {
		cfg.Settle.Timeout = DefaultSettleTimeout
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = DefaultRetryAttempts
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.RefDataTTL == 0 {
		cfg.RefDataTTL = DefaultRefDataTTL
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = DefaultLockTTL
	}
}

// findConfigFile searches for the config file in current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := "study_scheduler.yaml"
	if env != "" {
		configFileName = "study_scheduler." + env + ".yaml"
	}

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
