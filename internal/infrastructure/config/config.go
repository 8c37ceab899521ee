package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	DynamoDB      DynamoDBConfig      `mapstructure:"dynamodb"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Events        EventsConfig        `mapstructure:"events"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	HealthCheck     time.Duration `mapstructure:"health_check_period"`
	ConnectRetries  int           `mapstructure:"connect_retries"`
	ConnectDelay    time.Duration `mapstructure:"connect_retry_delay"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type DynamoDBConfig struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Table     string `mapstructure:"table"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// StorageConfig selects the payment repository: memory, postgres or dynamodb.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// EventsConfig selects where lifecycle events are relayed: none, redis or kafka.
// Stream is the Redis stream the API writes to and the worker reads from.
// RelayTarget is where the worker forwards that stream: log or kafka.
type EventsConfig struct {
	Sink        string `mapstructure:"sink"`
	Stream      string `mapstructure:"stream"`
	RelayTarget string `mapstructure:"relay_target"`
}

type PaymentConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	SupportedCurrencies []string      `mapstructure:"supported_currencies"`
	MinAmount           string        `mapstructure:"min_amount"`
	MaxAmount           string        `mapstructure:"max_amount"`
	DefaultCurrency     string        `mapstructure:"default_currency"`
	BaseURL             string        `mapstructure:"base_url"`
	LockBackend         string        `mapstructure:"lock_backend"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
}

type GatewayConfig struct {
	Driver          string        `mapstructure:"driver"`
	Name            string        `mapstructure:"name"`
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryAttempts   uint          `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	MockLatency     time.Duration `mapstructure:"mock_latency"`
	MockFailureRate float64       `mapstructure:"mock_failure_rate"`
	BreakerRequests uint32        `mapstructure:"breaker_requests"`
	BreakerRatio    float64       `mapstructure:"breaker_ratio"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type WorkerConfig struct {
	BatchSize      int64         `mapstructure:"batch_size"`
	BlockDuration  time.Duration `mapstructure:"block_duration"`
	ExpiryInterval time.Duration `mapstructure:"expiry_interval"`
	ConsumerGroup  string        `mapstructure:"consumer_group"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PAYORDERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/payorders")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive"))
		}
	case "dynamodb":
		if c.DynamoDB.Table == "" {
			errs = append(errs, fmt.Errorf("dynamodb.table is required"))
		}
		if c.DynamoDB.Region == "" {
			errs = append(errs, fmt.Errorf("dynamodb.region is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be memory, postgres or dynamodb, got %q", c.Storage.Driver))
	}
	// An in-process lock does not exclude other replicas writing to shared storage.
	if c.Storage.Driver != "memory" && c.Payment.LockBackend == "memory" {
		errs = append(errs, fmt.Errorf("payment.lock_backend must be redis when storage.driver is %s", c.Storage.Driver))
	}

	switch c.Events.Sink {
	case "none", "redis":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("kafka.brokers is required when events.sink is kafka"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, fmt.Errorf("kafka.topic is required when events.sink is kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.sink must be none, redis or kafka, got %q", c.Events.Sink))
	}
	if c.Events.RelayTarget != "log" && c.Events.RelayTarget != "kafka" {
		errs = append(errs, fmt.Errorf("events.relay_target must be log or kafka, got %q", c.Events.RelayTarget))
	}

	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Worker.ExpiryInterval <= 0 {
		errs = append(errs, fmt.Errorf("worker.expiry_interval must be positive"))
	}

	errs = append(errs, c.Payment.validate()...)

	switch c.Gateway.Driver {
	case "mock":
		if c.Gateway.MockFailureRate < 0 || c.Gateway.MockFailureRate > 1 {
			errs = append(errs, fmt.Errorf("gateway.mock_failure_rate must be between 0 and 1"))
		}
	case "http":
		if c.Gateway.BaseURL == "" {
			errs = append(errs, fmt.Errorf("gateway.base_url is required for the http gateway"))
		}
	default:
		errs = append(errs, fmt.Errorf("gateway.driver must be mock or http, got %q", c.Gateway.Driver))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Storage.Driver == "postgres" && c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.Enabled && c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret is required when auth is enabled"))
	}

	return errors.Join(errs...)
}

func (p *PaymentConfig) validate() []error {
	var errs []error
	if p.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("payment.timeout must be positive"))
	}
	if p.RetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("payment.retry_attempts must be positive"))
	}
	if len(p.SupportedCurrencies) == 0 {
		errs = append(errs, fmt.Errorf("payment.supported_currencies must not be empty"))
	}
	minAmount, minErr := decimal.NewFromString(p.MinAmount)
	if minErr != nil {
		errs = append(errs, fmt.Errorf("payment.min_amount: %w", minErr))
	}
	maxAmount, maxErr := decimal.NewFromString(p.MaxAmount)
	if maxErr != nil {
		errs = append(errs, fmt.Errorf("payment.max_amount: %w", maxErr))
	}
	if minErr == nil && maxErr == nil && (minAmount.IsNegative() || maxAmount.LessThan(minAmount)) {
		errs = append(errs, fmt.Errorf("payment amount bounds invalid: min=%s max=%s", p.MinAmount, p.MaxAmount))
	}
	if p.DefaultCurrency != "" && !slices.Contains(p.Currencies(), strings.ToUpper(p.DefaultCurrency)) {
		errs = append(errs, fmt.Errorf("payment.default_currency %q is not in supported_currencies", p.DefaultCurrency))
	}
	if p.LockBackend != "memory" && p.LockBackend != "redis" {
		errs = append(errs, fmt.Errorf("payment.lock_backend must be memory or redis, got %q", p.LockBackend))
	}
	if p.LockBackend == "redis" && p.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("payment.lock_ttl must be positive"))
	}
	return errs
}

// Currencies returns the supported currency codes upper-cased.
func (p *PaymentConfig) Currencies() []string {
	out := make([]string, 0, len(p.SupportedCurrencies))
	for _, c := range p.SupportedCurrencies {
		out = append(out, strings.ToUpper(strings.TrimSpace(c)))
	}
	return out
}

// Bounds returns the global amount limits. Call after Validate.
func (p *PaymentConfig) Bounds() (minAmount, maxAmount decimal.Decimal) {
	return decimal.RequireFromString(p.MinAmount), decimal.RequireFromString(p.MaxAmount)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Storage and events
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("events.sink", "none")
	v.SetDefault("events.stream", "payorders:events")
	v.SetDefault("events.relay_target", "log")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "payorders")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "payorders")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "30m")
	v.SetDefault("database.health_check_period", "1m")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_retry_delay", "1s")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// DynamoDB defaults
	v.SetDefault("dynamodb.region", "us-east-1")
	v.SetDefault("dynamodb.endpoint", "")
	v.SetDefault("dynamodb.table", "payments")
	v.SetDefault("dynamodb.access_key", "")
	v.SetDefault("dynamodb.secret_key", "")

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "payorders.events")
	v.SetDefault("kafka.client_id", "payorders")

	// Payment defaults
	v.SetDefault("payment.timeout", "30m")
	v.SetDefault("payment.retry_attempts", 3)
	v.SetDefault("payment.supported_currencies", []string{"USD", "EUR", "GBP", "BRL", "JPY"})
	v.SetDefault("payment.min_amount", "0.01")
	v.SetDefault("payment.max_amount", "100000")
	v.SetDefault("payment.default_currency", "USD")
	v.SetDefault("payment.base_url", "http://localhost:8080/api/v1")
	v.SetDefault("payment.lock_backend", "memory")
	v.SetDefault("payment.lock_ttl", "30s")

	// Gateway defaults
	v.SetDefault("gateway.driver", "mock")
	v.SetDefault("gateway.name", "mockpay")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.retry_attempts", 3)
	v.SetDefault("gateway.retry_delay", "200ms")
	v.SetDefault("gateway.mock_latency", "200ms")
	v.SetDefault("gateway.mock_failure_rate", 0.1)
	v.SetDefault("gateway.breaker_requests", 10)
	v.SetDefault("gateway.breaker_ratio", 0.6)
	v.SetDefault("gateway.breaker_timeout", "30s")

	// Worker defaults
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block_duration", "1s")
	v.SetDefault("worker.expiry_interval", "1m")
	v.SetDefault("worker.consumer_group", "payorders-relay")
	v.SetDefault("worker.idempotency_ttl", "24h")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expiry", "24h")

	v.SetDefault("instance_id", "payorders-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MigrateURL is the connection string golang-migrate expects.
func (c *DatabaseConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
