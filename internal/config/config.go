package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/esl"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/publisher"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/storage"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Switch connection
	ESL          esl.Config
	PollInterval time.Duration

	// Publish targets
	Store storage.Config
	Keys  publisher.Keys
	Kafka publisher.KafkaConfig

	// Auth on /ws and /api
	AuthEnabled bool
	OIDCIssuer  string

	// WebSocket
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8090"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Keys: publisher.Keys{
			Queues: getEnv("QUEUE_METRICS_KEY", publisher.DefaultQueueKey),
			Agents: getEnv("AGENT_METRICS_KEY", publisher.DefaultAgentKey),
		},
		Kafka: publisher.KafkaConfig{
			Brokers: publisher.ParseBrokers(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "rtmetrics.snapshots"),
			Timeout: 10 * time.Second,
		},
		OIDCIssuer: getEnv("OIDC_ISSUER", ""),
	}

	// Switch
	eslPort, err := getInt("ESL_PORT", "8021")
	if err != nil {
		return nil, err
	}
	readTimeout, err := getSeconds("ESL_READ_TIMEOUT", "30")
	if err != nil {
		return nil, err
	}
	dialTimeout, err := getSeconds("ESL_DIAL_TIMEOUT", "10")
	if err != nil {
		return nil, err
	}
	config.ESL = esl.Config{
		Address:     net.JoinHostPort(getEnv("ESL_HOST", "127.0.0.1"), strconv.Itoa(eslPort)),
		Password:    getEnv("ESL_PASSWORD", "ClueCon"),
		ReadTimeout: readTimeout,
		DialTimeout: dialTimeout,
	}

	config.PollInterval, err = getSeconds("POLL_INTERVAL", "20")
	if err != nil {
		return nil, err
	}

	// Store
	mode, err := storage.ParseMode(getEnv("STORE_MODE", "redis"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MODE: %w", err)
	}
	redisPort, err := getInt("REDIS_PORT", "6379")
	if err != nil {
		return nil, err
	}
	redisDB, err := getInt("REDIS_DB", "0")
	if err != nil {
		return nil, err
	}
	config.Store = storage.Config{
		Mode: mode,
		Redis: storage.RedisConfig{
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     redisPort,
			DB:       redisDB,
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Dynamo: storage.DynamoConfig{
			Endpoint: getEnv("DYNAMO_ENDPOINT", ""),
			Region:   getEnv("DYNAMO_REGION", "eu-central-1"),
			Table:    getEnv("DYNAMO_TABLE", "rtmetrics-snapshots"),
		},
	}

	// Auth
	config.AuthEnabled, err = strconv.ParseBool(getEnv("AUTH_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_ENABLED: %w", err)
	}

	// WebSocket timeouts
	config.WSReadTimeout, err = getSeconds("WS_READ_TIMEOUT", "60")
	if err != nil {
		return nil, err
	}
	config.WSWriteTimeout, err = getSeconds("WS_WRITE_TIMEOUT", "10")
	if err != nil {
		return nil, err
	}
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks value ranges and cross-field requirements
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT: %q", c.Port))
	}
	if c.ESL.ReadTimeout <= 0 {
		errs = append(errs, errors.New("invalid ESL_READ_TIMEOUT: must be positive"))
	}
	if c.ESL.DialTimeout <= 0 {
		errs = append(errs, errors.New("invalid ESL_DIAL_TIMEOUT: must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("invalid POLL_INTERVAL: must be positive"))
	}
	if c.Store.Redis.Port < 1 || c.Store.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid REDIS_PORT: %d", c.Store.Redis.Port))
	}
	if c.Store.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("invalid REDIS_DB: %d", c.Store.Redis.DB))
	}
	if c.Store.Mode == storage.ModeDynamoDB && c.Store.Dynamo.Table == "" {
		errs = append(errs, errors.New("invalid DYNAMO_TABLE: required when STORE_MODE=dynamodb"))
	}
	if c.Keys.Queues == c.Keys.Agents {
		errs = append(errs, errors.New("invalid AGENT_METRICS_KEY: must differ from QUEUE_METRICS_KEY"))
	}
	if c.AuthEnabled && c.OIDCIssuer == "" {
		errs = append(errs, errors.New("invalid OIDC_ISSUER: required when AUTH_ENABLED=true"))
	}
	if c.WSReadTimeout <= 0 || c.WSWriteTimeout <= 0 {
		errs = append(errs, errors.New("invalid WS_READ_TIMEOUT/WS_WRITE_TIMEOUT: must be positive"))
	}

	return errors.Join(errs...)
}

// KafkaEnabled reports whether a snapshot stream is configured
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key, defaultValue string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getSeconds reads a whole number of seconds
func getSeconds(key, defaultValue string) (time.Duration, error) {
	n, err := getInt(key, defaultValue)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
