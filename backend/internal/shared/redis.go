package shared

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil without error when no address is configured;
// callers treat a nil client as "caching disabled".
func ConnectRedis(config *RedisConfig) (*redis.Client, error) {
	if config == nil || config.Addr == "" {
		log.Println("WARN: REDIS_ADDR not set, principal cache disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", config.Addr, err)
	}

	log.Printf("INFO: connected to Redis at %s", config.Addr)
	return rdb, nil
}
