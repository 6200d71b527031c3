package slot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"olive-mapper/internal/logger"

	"github.com/redis/go-redis/v9"
)

// Redis：以字符串键保存槽位，键名带前缀 REDIS_KEY_PREFIX（缺省 olive:）
type Redis struct {
	rc     *redis.Client
	prefix string
}

// NewRedis：使用已有客户端
func NewRedis(rc *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "olive:"
	}
	return &Redis{rc: rc, prefix: prefix}
}

// OpenRedisFromEnv：REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB；REDIS_DB 解析失败回退 0
func OpenRedisFromEnv(ctx context.Context) (*Redis, error) {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	addr := host + ":" + port
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, _ := strconv.Atoi(v); n >= 0 {
			db = n
		}
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(rc, os.Getenv("REDIS_KEY_PREFIX")), nil
}

func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rc.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Save：不设置过期时间，槽位需跨进程重启保留
func (r *Redis) Save(ctx context.Context, key string, data []byte) error {
	if err := r.rc.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rc.Close() }
