package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"BackofficeAPI/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RDB holds schema documents when schema_source=redis.
var RDB *redis.Client

// InitRedis accepts either host:port or a redis:// URL.
func InitRedis(addr string) error {
	if addr == "" {
		addr = "localhost:6379"
		logger.Warn("redis_default_addr", nil)
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second

	RDB = redis.NewClient(opts)
	return nil
}

func PingRedis(ctx context.Context) error {
	if RDB == nil {
		return fmt.Errorf("redis not initialised")
	}
	return RDB.Ping(ctx).Err()
}

func CloseRedis() {
	if RDB != nil {
		_ = RDB.Close()
		RDB = nil
	}
}
