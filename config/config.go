package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	UserStoreRedis    = "redis"
	UserStorePostgres = "postgres"
)

type Config struct {
	Env          string
	Server       ServerConfig
	Redis        RedisConfig
	Postgres     PostgresConfig
	JWT          JWTConfig
	Log          LogConfig
	Kafka        KafkaConfig
	TicketLink   TicketLinkConfig
	Microservice MicroserviceConfig
}

type ServerConfig struct {
	HTTPPort        int
	GRpcPort        int
	MetricsPort     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type PostgresConfig struct {
	DSN      string
	MaxConns int32
}

type KafkaConfig struct {
	Brokers               []string
	ProducerRetryMax      int
	ProducerRequiredAcks  int
	ConsumerGroupID       string
	ConsumerRetryMax      int
	ConsumerRetryBackoff  time.Duration
	ConsumerRejoinBackoff time.Duration
	RequestLinkTopic      string
	AccessTokenTopic      string
	RequestLinkDeadLetter string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

type MicroserviceConfig struct {
	// Rule is the rule service's gRPC health address. Empty disables the check.
	Rule string
}

type TicketLinkConfig struct {
	UserStore string
	// Location is used to render and parse available_from on both sides of the queue.
	Location  *time.Location
	SeedUsers []string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	loc, err := loadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:        getEnvAsInt("SERVER_HTTP_PORT", 8000),
			GRpcPort:        getEnvAsInt("SERVER_GRPC_PORT", 50056),
			MetricsPort:     getEnvAsInt("SERVER_METRICS_PORT", 8001),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Postgres: PostgresConfig{
			DSN:      getEnv("POSTGRES_DSN", ""),
			MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "jwt-secret"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 3000*time.Minute),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:               getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:      getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks:  getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			ConsumerGroupID:       getEnv("KAFKA_CONSUMER_GROUP_ID", ""),
			ConsumerRetryMax:      getEnvAsInt("KAFKA_CONSUMER_RETRY_MAX", 3),
			ConsumerRetryBackoff:  getEnvAsDuration("KAFKA_CONSUMER_RETRY_BACKOFF", 500*time.Millisecond),
			ConsumerRejoinBackoff: getEnvAsDuration("KAFKA_CONSUMER_REJOIN_BACKOFF", time.Second),
			RequestLinkTopic:      getEnv("KAFKA_REQUEST_LINK_TOPIC", "request_link_queue"),
			AccessTokenTopic:      getEnv("KAFKA_ACCESS_TOKEN_TOPIC", "access_token_queue"),
			RequestLinkDeadLetter: getEnv("KAFKA_REQUEST_LINK_DLQ_TOPIC", "request_link_queue.dlq"),
		},
		TicketLink: TicketLinkConfig{
			UserStore: getEnv("USER_STORE", UserStoreRedis),
			Location:  loc,
			SeedUsers: getEnvAsSlice("SEED_USERS", nil),
		},
		Microservice: MicroserviceConfig{
			Rule: getEnv("RULE_SERVICE_GRPC_ADDR", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"http":    c.Server.HTTPPort,
		"grpc":    c.Server.GRpcPort,
		"metrics": c.Server.MetricsPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s port: %d", name, port)
		}
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}

	if c.Kafka.RequestLinkTopic == "" || c.Kafka.AccessTokenTopic == "" {
		return fmt.Errorf("kafka request and access token topics are required")
	}

	switch c.TicketLink.UserStore {
	case UserStoreRedis:
	case UserStorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when USER_STORE=%s", UserStorePostgres)
		}
	default:
		return fmt.Errorf("unknown user store: %q", c.TicketLink.UserStore)
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "jwt-secret" {
		if c.Env == "production" {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}

	return nil
}

// GroupID returns the configured consumer group or a per-service default.
func (c KafkaConfig) GroupID(service string) string {
	if c.ConsumerGroupID != "" {
		return c.ConsumerGroupID
	}
	return service
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}

	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
