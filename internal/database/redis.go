package database

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// ConnectRedis is optional: the balance cache degrades to direct summation
// when no redis is configured, so callers treat an empty URL as "skip".
func ConnectRedis(redisURL string) error {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return err
		}
		RedisClient = redis.NewClient(opt)
	} else {
		RedisClient = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	_, err := RedisClient.Ping(context.Background()).Result()
	return err
}

func CloseRedis() {
	if RedisClient != nil {
		_ = RedisClient.Close()
	}
}
