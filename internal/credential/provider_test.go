package credential

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aliaskit/client/internal/domain"
)

func newRedisProvider(t *testing.T) (*RedisProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	p, err := NewRedisProvider(context.Background(), mr.Addr(), "", 0, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, mr
}

func TestProviders(t *testing.T) {
	redisProvider, _ := newRedisProvider(t)
	sealed, err := NewSealedProvider(NewMemoryProvider(""), "passphrase")
	require.NoError(t, err)
	providers := map[string]Provider{
		"memory": NewMemoryProvider(""),
		"redis":  redisProvider,
		"sealed": sealed,
	}

	for name, p := range providers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := p.Get(ctx)
			assert.ErrorIs(t, err, ErrNoAPIKey)

			require.NoError(t, p.Set(ctx, "abcd1234"))
			key, err := p.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.APIKey("abcd1234"), key)

			assert.ErrorIs(t, p.Set(ctx, "  "), ErrNoAPIKey)

			require.NoError(t, p.Clear(ctx))
			_, err = p.Get(ctx)
			assert.ErrorIs(t, err, ErrNoAPIKey)
		})
	}
}

func TestRedisProvider(t *testing.T) {
	t.Run("使用带前缀的键", func(t *testing.T) {
		p, mr := newRedisProvider(t)
		require.NoError(t, p.Set(context.Background(), "abcd1234"))

		value, err := mr.Get("test:api_key")
		require.NoError(t, err)
		assert.Equal(t, "abcd1234", value)
	})

	t.Run("连接失败", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := NewRedisProvider(context.Background(), addr, "", 0, "")
		assert.Error(t, err)
	})

	t.Run("Ping 反映连接状态", func(t *testing.T) {
		p, mr := newRedisProvider(t)
		assert.NoError(t, p.Ping(context.Background()))
		mr.Close()
		assert.Error(t, p.Ping(context.Background()))
	})
}

func TestMemoryProvider_InitialKey(t *testing.T) {
	p := NewMemoryProvider("seeded-key")
	key, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.APIKey("seeded-key"), key)
}
