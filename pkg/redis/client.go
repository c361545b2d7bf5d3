package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-ticketlink/config"
)

// Nil is returned by reads of a missing key.
const Nil = redis.Nil

func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	return client, nil
}

func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
