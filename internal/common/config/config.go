package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Providers ProvidersConfig         `mapstructure:"providers"`
	Dispatch  DispatchConfig          `mapstructure:"dispatch"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Realtime  RealtimeConfig          `mapstructure:"realtime"`
	Cache     CacheConfig             `mapstructure:"cache"`
	Audit     AuditConfig             `mapstructure:"audit"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Tracing   TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`             // gin mode: debug, release, test
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds; 0 keeps SSE streams open
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
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
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single address shorthand
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	URL      string `mapstructure:"url"` // overrides Address, Password and DB
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// --- Notification providers ---

// ProvidersConfig holds one explicit liveness switch per channel. A channel
// whose provider is not enabled always uses the simulation fallback.
type ProvidersConfig struct {
	AWS   AWSConfig           `mapstructure:"aws"`
	Email EmailProviderConfig `mapstructure:"email"`
	SMS   SMSProviderConfig   `mapstructure:"sms"`
	Push  PushProviderConfig  `mapstructure:"push"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // optional, e.g. LocalStack
}

type EmailProviderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type SMSProviderConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SenderID string `mapstructure:"sender_id"`
}

type PushProviderConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	URL         string `mapstructure:"url"`
	AccessToken string `mapstructure:"access_token"`
}

// DispatchConfig bounds the fan-out.
type DispatchConfig struct {
	AdapterTimeout  int `mapstructure:"adapter_timeout"`  // milliseconds
	SimulationDelay int `mapstructure:"simulation_delay"` // milliseconds
	MaxConcurrency  int `mapstructure:"max_concurrency"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	TLS            bool   `mapstructure:"tls"` // plaintext gRPC when false
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type RealtimeConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Key     string `mapstructure:"key"`
	TTL     int    `mapstructure:"ttl"` // milliseconds
}

type AuditConfig struct {
	Index string `mapstructure:"index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
