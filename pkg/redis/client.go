// Package redis wraps go-redis client construction. The platform uses Redis
// only as a read-through cache for hot public pages; a missing or down Redis
// degrades to direct database reads.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rentzentro/platform/pkg/config"
)

const defaultTimeout = 5 * time.Second

// Config covers standalone, Sentinel, and Cluster deployments. The
// topology is inferred: a MasterName means Addrs are sentinels, multiple
// plain addresses mean cluster seed nodes, one address means standalone.
type Config struct {
	Addrs      []string
	MasterName string
	Username   string
	Password   string
	DB         int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigFromEnv loads Redis settings from the environment. Empty REDIS_ADDRS
// means caching is disabled.
func ConfigFromEnv() Config {
	return Config{
		Addrs:       splitAddrs(config.GetEnv("REDIS_ADDRS", "")),
		MasterName:  config.GetEnv("REDIS_MASTER_NAME", ""),
		Username:    config.GetEnv("REDIS_USERNAME", ""),
		Password:    config.GetEnv("REDIS_PASSWORD", ""),
		DB:          config.GetEnvInt("REDIS_DB", 0),
		DialTimeout: config.GetEnvDuration("REDIS_DIAL_TIMEOUT", defaultTimeout),
	}
}

// NewUniversalClient builds a client for whatever topology the config
// describes and verifies connectivity with a ping before returning it.
func NewUniversalClient(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("no redis addresses configured")
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        cfg.Addrs,
		MasterName:   cfg.MasterName,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeoutOrDefault(cfg.DialTimeout),
		ReadTimeout:  timeoutOrDefault(cfg.ReadTimeout),
		WriteTimeout: timeoutOrDefault(cfg.WriteTimeout),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func splitAddrs(raw string) []string {
	var addrs []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
