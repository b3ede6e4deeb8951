package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Mode selects the store backend
type Mode string

const (
	ModeRedis    Mode = "redis"
	ModeDynamoDB Mode = "dynamodb"
	ModeNone     Mode = "none"
)

// ParseMode validates a STORE_MODE value
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeRedis, ModeDynamoDB, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("unknown store mode %q", s)
	}
}

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	DB       int
	Password string
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DynamoConfig holds DynamoDB settings. A non-empty Endpoint selects local
// mode with static credentials.
type DynamoConfig struct {
	Endpoint string
	Region   string
	Table    string
}

// Local reports whether the config points at a local DynamoDB
func (c DynamoConfig) Local() bool {
	return c.Endpoint != ""
}

// Config holds the store backend selection
type Config struct {
	Mode   Mode
	Redis  RedisConfig
	Dynamo DynamoConfig
}

// NewStore creates the store selected by cfg.Mode
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("component", "storage").Logger()

	switch cfg.Mode {
	case ModeRedis:
		return NewRedisStore(ctx, cfg.Redis, logger), nil
	case ModeDynamoDB:
		return NewDynamoDBStore(ctx, cfg.Dynamo, logger)
	case ModeNone, "":
		logger.Info().Msg("snapshot persistence disabled (STORE_MODE=none)")
		return NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown store mode %q", cfg.Mode)
	}
}
