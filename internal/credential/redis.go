package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"aliaskit/client/internal/domain"
)

// RedisProvider 把 API Key 保存在 Redis 中，多个本地进程可共享同一登录状态。
type RedisProvider struct {
	client *redis.Client
	key    string
}

// NewRedisProvider 连接 Redis 并校验可用性。
func NewRedisProvider(ctx context.Context, addr, password string, db int, prefix string) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 4,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisProviderFromClient(client, prefix), nil
}

// NewRedisProviderFromClient 基于已有连接创建提供者。
func NewRedisProviderFromClient(client *redis.Client, prefix string) *RedisProvider {
	if prefix == "" {
		prefix = "aliaskit"
	}
	return &RedisProvider{
		client: client,
		key:    prefix + ":api_key",
	}
}

func (p *RedisProvider) Get(ctx context.Context) (domain.APIKey, error) {
	value, err := p.client.Get(ctx, p.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoAPIKey
		}
		return "", fmt.Errorf("failed to read api key: %w", err)
	}
	key := domain.APIKey(value)
	if key.Empty() {
		return "", ErrNoAPIKey
	}
	return key, nil
}

func (p *RedisProvider) Set(ctx context.Context, key domain.APIKey) error {
	if key.Empty() {
		return ErrNoAPIKey
	}
	if err := p.client.Set(ctx, p.key, key.String(), 0).Err(); err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}
	return nil
}

func (p *RedisProvider) Clear(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("failed to clear api key: %w", err)
	}
	return nil
}

// Ping 检查 Redis 连接，供健康检查使用。
func (p *RedisProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close 关闭连接。
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
