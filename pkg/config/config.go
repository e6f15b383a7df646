// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Consumer, Kinesis, State, Redis, Postgres, Kafka).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Consumer ConsumerConfig `yaml:"consumer"`
	Kinesis  KinesisConfig  `yaml:"kinesis"`
	State    StateConfig    `yaml:"state"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ConsumerConfig describes what to poll and how. Strategy and StartPolicy
// are parsed into their enums by the engine.
type ConsumerConfig struct {
	Stream             string        `yaml:"stream"`
	Strategy           string        `yaml:"strategy"`
	ShardID            string        `yaml:"shardId"`
	StartPolicy        string        `yaml:"startPolicy"`
	StartTimestamp     time.Time     `yaml:"startTimestamp"`
	MaxRecordsPerShard int           `yaml:"maxRecordsPerShard"`
	ParseJSON          *bool         `yaml:"parseJson"`
	IncludeMetadata    bool          `yaml:"includeMetadata"`
	FetchConcurrency   int           `yaml:"fetchConcurrency"`
	PollInterval       time.Duration `yaml:"pollInterval"`
	PollTimeout        time.Duration `yaml:"pollTimeout"`
}

// ParseJSONEnabled reports whether record payloads should be parsed as JSON.
// Unset means enabled.
func (c ConsumerConfig) ParseJSONEnabled() bool {
	return c.ParseJSON == nil || *c.ParseJSON
}

// KinesisConfig holds the AWS region and an optional endpoint override for
// local stacks.
type KinesisConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// StateConfig selects the poll-state backend and the key the consumer's
// state is stored under.
type StateConfig struct {
	Backend     string `yaml:"backend"`
	ConsumerKey string `yaml:"consumerKey"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings for the delivery sink.
// An empty broker list disables the sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with defaults suited to local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Consumer: ConsumerConfig{
			Strategy:           "ALL_SHARDS",
			StartPolicy:        "LATEST",
			MaxRecordsPerShard: 100,
			FetchConcurrency:   1,
			PollInterval:       10 * time.Second,
			PollTimeout:        60 * time.Second,
		},
		Kinesis: KinesisConfig{
			Region: "us-east-1",
		},
		State: StateConfig{
			Backend:     "memory",
			ConsumerKey: "default",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "streampoller",
			User:            "streampoller",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic: "stream-records",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SSP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SSP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SSP_CONSUMER_STREAM"); v != "" {
		cfg.Consumer.Stream = v
	}
	if v := os.Getenv("SSP_CONSUMER_STRATEGY"); v != "" {
		cfg.Consumer.Strategy = v
	}
	if v := os.Getenv("SSP_CONSUMER_SHARD_ID"); v != "" {
		cfg.Consumer.ShardID = v
	}
	if v := os.Getenv("SSP_CONSUMER_START_POLICY"); v != "" {
		cfg.Consumer.StartPolicy = v
	}
	if v := os.Getenv("SSP_CONSUMER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Consumer.PollInterval = d
		}
	}
	if v := os.Getenv("SSP_KINESIS_REGION"); v != "" {
		cfg.Kinesis.Region = v
	}
	if v := os.Getenv("SSP_KINESIS_ENDPOINT"); v != "" {
		cfg.Kinesis.Endpoint = v
	}
	if v := os.Getenv("SSP_STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}
	if v := os.Getenv("SSP_STATE_CONSUMER_KEY"); v != "" {
		cfg.State.ConsumerKey = v
	}
	if v := os.Getenv("SSP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SSP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SSP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SSP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SSP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SSP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SSP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SSP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SSP_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("SSP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SSP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SSP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
