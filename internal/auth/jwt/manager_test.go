package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	t.Run("签发后可以验证", func(t *testing.T) {
		m, err := NewManager("test-secret", "aliaskit", time.Hour)
		require.NoError(t, err)

		token, err := m.Issue()
		require.NoError(t, err)
		assert.Equal(t, "Bearer", token.TokenType)

		claims, err := m.Validate(token.AccessToken)
		require.NoError(t, err)
		assert.NotEmpty(t, claims.SessionID)
		assert.Equal(t, "aliaskit", claims.Issuer)
	})

	t.Run("过期令牌", func(t *testing.T) {
		m, err := NewManager("test-secret", "aliaskit", time.Minute)
		require.NoError(t, err)
		token, err := m.Issue()
		require.NoError(t, err)

		m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err = m.Validate(token.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("其他密钥签发的令牌", func(t *testing.T) {
		other, err := NewManager("other-secret", "aliaskit", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue()
		require.NoError(t, err)

		m, err := NewManager("test-secret", "aliaskit", time.Hour)
		require.NoError(t, err)
		_, err = m.Validate(token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("签发者不匹配", func(t *testing.T) {
		other, err := NewManager("test-secret", "someone-else", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue()
		require.NoError(t, err)

		m, err := NewManager("test-secret", "aliaskit", time.Hour)
		require.NoError(t, err)
		_, err = m.Validate(token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("空密钥时随机生成", func(t *testing.T) {
		a, err := NewManager("", "aliaskit", 0)
		require.NoError(t, err)
		b, err := NewManager("", "aliaskit", 0)
		require.NoError(t, err)

		token, err := a.Issue()
		require.NoError(t, err)
		_, err = a.Validate(token.AccessToken)
		assert.NoError(t, err)
		_, err = b.Validate(token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("格式错误", func(t *testing.T) {
		m, err := NewManager("test-secret", "aliaskit", time.Hour)
		require.NoError(t, err)
		_, err = m.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
