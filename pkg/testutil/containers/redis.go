//go:build integration

package containers

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"casedesk/internal/platform/config"
	"casedesk/internal/platform/redis"
)

// RedisContainer is a Redis instance reached through the same client wrapper
// the services use, so pool settings and the startup ping are exercised too.
type RedisContainer struct {
	URL    string
	Client *goredis.Client

	platform *redis.Client
}

func startRedis(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	client, err := redis.New(ctx, config.RedisConfig{URL: url, PoolSize: 4})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect redis: %v", err)
	}
	// The manager shares the container across suites; Ryuk reaps it at exit.
	return &RedisContainer{URL: url, Client: client.Client, platform: client}
}

// FlushAll empties the database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	if err := r.platform.Health(ctx); err != nil {
		return err
	}
	return r.Client.FlushAll(ctx).Err()
}
