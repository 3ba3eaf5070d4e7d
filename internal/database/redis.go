package database

import (
	"context"
	"fmt"

	"github.com/aihub/rag-service/internal/config"
	"github.com/redis/go-redis/v9"
)

// InitRedis 初始化Redis客户端（仅用于向量缓存，连接失败时调用方降级为无缓存）
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	// 测试连接
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}
