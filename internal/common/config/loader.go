package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultAdapterTimeout  = 5000
	DefaultSimulationDelay = 100
	DefaultMaxConcurrency  = 32
	DefaultExpoPushURL     = "https://exp.host/--/api/v2/push/send"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on
// top and lets environment variables override any key.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return build(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working
// directory, so tests and binaries share one file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from their conventional environment
// variables when the config file left them blank.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.URL, "REDIS_URL")
	setIfEmpty(&cfg.Database.Elasticsearch.Password, "ELASTICSEARCH_PASSWORD")
	setIfEmpty(&cfg.Providers.AWS.Region, "AWS_REGION")
	setIfEmpty(&cfg.Providers.AWS.Endpoint, "AWS_ENDPOINT_URL")
	setIfEmpty(&cfg.Providers.Email.FromEmail, "SES_FROM_EMAIL")
	setIfEmpty(&cfg.Providers.Push.AccessToken, "EXPO_ACCESS_TOKEN")
	setIfEmpty(&cfg.Tracing.JaegerEndpoint, "JAEGER_ENDPOINT")
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "emergencyconnect"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}

	if cfg.Providers.AWS.Region == "" {
		cfg.Providers.AWS.Region = "us-east-1"
	}
	if cfg.Providers.Push.URL == "" {
		cfg.Providers.Push.URL = DefaultExpoPushURL
	}

	if cfg.Dispatch.AdapterTimeout == 0 {
		cfg.Dispatch.AdapterTimeout = DefaultAdapterTimeout
	}
	if cfg.Dispatch.SimulationDelay == 0 {
		cfg.Dispatch.SimulationDelay = DefaultSimulationDelay
	}
	if cfg.Dispatch.MaxConcurrency == 0 {
		cfg.Dispatch.MaxConcurrency = DefaultMaxConcurrency
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.Realtime.ChannelPrefix == "" {
		cfg.Realtime.ChannelPrefix = "emergencyconnect:"
	}
	if cfg.Cache.Key == "" {
		cfg.Cache.Key = "emergencyconnect:recipients"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 60000
	}
	if cfg.Audit.Index == "" {
		cfg.Audit.Index = "alert-deliveries"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if (cfg.Realtime.Enabled || cfg.Cache.Enabled) && cfg.Database.Redis.Address == "" && cfg.Database.Redis.URL == "" {
		return fmt.Errorf("database.redis.address is required when realtime or cache is enabled")
	}
	if cfg.Database.Elasticsearch.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required when enabled")
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}
	if cfg.Providers.Email.Enabled && cfg.Providers.Email.FromEmail == "" {
		return fmt.Errorf("providers.email.from_email is required when email is enabled")
	}

	if cfg.Dispatch.MaxConcurrency < 1 {
		return fmt.Errorf("dispatch.max_concurrency must be positive")
	}
	if cfg.Dispatch.AdapterTimeout < 0 || cfg.Dispatch.SimulationDelay < 0 {
		return fmt.Errorf("dispatch timeouts must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
