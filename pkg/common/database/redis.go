package database

import (
	"context"
	"fmt"
	"time"

	"github.com/biohubbc/biohub-platform/pkg/common/config"
	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns a redis client for the stylesheet cache. A
// failed ping is logged but not fatal; the cache degrades to reading
// stylesheets from object storage on every lookup.
func ConnectRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Error("Failed to connect to Redis")
	} else {
		logger.Log.Info("Connected to Redis")
	}

	return client
}
