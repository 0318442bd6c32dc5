package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/MemberPay/internal/pkg/env"
)

var (
	client    *redis.Client
	available bool
)

// Config describes the Redis connection shared by locks and the rate limiter.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LoadConfig reads CACHE_* variables. An empty host disables Redis.
func LoadConfig() Config {
	return Config{
		Host:     env.GetEnv("CACHE_HOST", ""),
		Port:     env.GetEnvInt("CACHE_PORT", 6379),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	}
}

// Enabled reports whether a Redis host is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

// SetupCache connects to Redis when configured. Without a reachable server
// the service falls back to in-process locks and limiter storage.
func SetupCache(cfg Config) {
	if !cfg.Enabled() {
		log.Info("[Cache] CACHE_HOST not set, running without Redis")
		return
	}

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to Redis at %s: %v", client.Options().Addr, err)
		available = false
		return
	}
	available = true
	log.Infof("[Cache] Successfully connected to Redis: %s", pong)
}

// GetClient returns the Redis client, or nil when Redis is not available.
func GetClient() *redis.Client {
	if !available {
		return nil
	}
	return client
}

// Close closes the Redis connection if one was opened.
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}
