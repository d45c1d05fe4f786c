package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"aliaskit/client/internal/apiclient"
	"aliaskit/client/internal/credential"
	"aliaskit/client/internal/domain"
)

// MockAuthenticator 模拟登录接口
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(domain.LoginResult), args.Error(1)
}

func (m *MockAuthenticator) VerifyMFA(ctx context.Context, mfaKey, token string) (domain.APIKey, error) {
	args := m.Called(ctx, mfaKey, token)
	return args.Get(0).(domain.APIKey), args.Error(1)
}

func (m *MockAuthenticator) UserInfo(ctx context.Context) (domain.UserInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.UserInfo), args.Error(1)
}

func (m *MockAuthenticator) CheckAPIKey(ctx context.Context, key domain.APIKey) (domain.UserInfo, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.UserInfo), args.Error(1)
}

// countingCache 记录 Reset 调用次数
type countingCache struct {
	resets int
}

func (c *countingCache) Reset() error {
	c.resets++
	return nil
}

func newTestService(api Authenticator) (*Service, *credential.MemoryProvider, *countingCache) {
	credentials := credential.NewMemoryProvider("")
	cache := &countingCache{}
	return NewService(api, credentials, cache, nil), credentials, cache
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("登录成功保存 API Key", func(t *testing.T) {
		api := new(MockAuthenticator)
		api.On("Login", mock.Anything, "me@example.com", "pw").
			Return(domain.LoginResult{Email: "me@example.com", APIKey: "abcd1234"}, nil).Once()
		service, credentials, cache := newTestService(api)

		result, err := service.Login(ctx, " me@example.com ", "pw")
		require.NoError(t, err)
		assert.False(t, result.MFAEnabled)

		key, err := credentials.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.APIKey("abcd1234"), key)
		assert.Equal(t, 1, cache.resets)
	})

	t.Run("开启 MFA 时不保存凭据", func(t *testing.T) {
		api := new(MockAuthenticator)
		api.On("Login", mock.Anything, "me@example.com", "pw").
			Return(domain.LoginResult{MFAEnabled: true, MFAKey: "mfa-key"}, nil).Once()
		api.On("VerifyMFA", mock.Anything, "mfa-key", "123456").Return(domain.APIKey("abcd1234"), nil).Once()
		service, credentials, _ := newTestService(api)

		result, err := service.Login(ctx, "me@example.com", "pw")
		require.NoError(t, err)
		assert.True(t, result.MFAEnabled)
		_, err = credentials.Get(ctx)
		assert.ErrorIs(t, err, credential.ErrNoAPIKey)

		require.NoError(t, service.VerifyMFA(ctx, result.MFAKey, "123456"))
		key, err := credentials.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.APIKey("abcd1234"), key)
	})

	t.Run("输入校验", func(t *testing.T) {
		service, _, _ := newTestService(new(MockAuthenticator))

		_, err := service.Login(ctx, "not-an-email", "pw")
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)

		_, err = service.Login(ctx, "me@example.com", "")
		assert.ErrorIs(t, err, domain.ErrPasswordEmpty)

		assert.ErrorIs(t, service.VerifyMFA(ctx, "mfa-key", " "), ErrMFATokenEmpty)
	})

	t.Run("服务端错误原样返回", func(t *testing.T) {
		api := new(MockAuthenticator)
		api.On("Login", mock.Anything, "me@example.com", "bad").
			Return(domain.LoginResult{}, apiclient.ErrInvalidAPIKey).Once()
		service, _, cache := newTestService(api)

		_, err := service.Login(ctx, "me@example.com", "bad")
		assert.ErrorIs(t, err, apiclient.ErrInvalidAPIKey)
		assert.Zero(t, cache.resets)
	})
}

func TestService_UseAPIKey(t *testing.T) {
	ctx := context.Background()

	t.Run("有效的 API Key", func(t *testing.T) {
		api := new(MockAuthenticator)
		api.On("CheckAPIKey", mock.Anything, domain.APIKey("abcd1234")).
			Return(domain.UserInfo{Email: "me@example.com"}, nil).Once()
		service, credentials, cache := newTestService(api)

		info, err := service.UseAPIKey(ctx, "abcd1234")
		require.NoError(t, err)
		assert.Equal(t, "me@example.com", info.Email)
		key, _ := credentials.Get(ctx)
		assert.Equal(t, domain.APIKey("abcd1234"), key)
		assert.Equal(t, 1, cache.resets)
	})

	t.Run("被拒绝时保留原会话", func(t *testing.T) {
		api := new(MockAuthenticator)
		api.On("CheckAPIKey", mock.Anything, domain.APIKey("wrong")).
			Return(domain.UserInfo{}, apiclient.ErrInvalidAPIKey).Once()
		service, credentials, cache := newTestService(api)
		require.NoError(t, credentials.Set(ctx, "old-key"))

		_, err := service.UseAPIKey(ctx, "wrong")
		assert.ErrorIs(t, err, apiclient.ErrInvalidAPIKey)

		key, err := credentials.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.APIKey("old-key"), key)
		assert.Zero(t, cache.resets)
	})

	t.Run("未登录时被拒绝仍为未登录", func(t *testing.T) {
		api := new(MockAuthenticator)
		api.On("CheckAPIKey", mock.Anything, domain.APIKey("wrong")).
			Return(domain.UserInfo{}, apiclient.ErrInvalidAPIKey).Once()
		service, credentials, _ := newTestService(api)

		_, err := service.UseAPIKey(ctx, "wrong")
		assert.ErrorIs(t, err, apiclient.ErrInvalidAPIKey)
		_, err = credentials.Get(ctx)
		assert.ErrorIs(t, err, credential.ErrNoAPIKey)
	})
}

func TestService_WhoAmIAndLogout(t *testing.T) {
	ctx := context.Background()
	api := new(MockAuthenticator)
	api.On("UserInfo", mock.Anything).Return(domain.UserInfo{Name: "Me"}, nil).Once()
	service, credentials, cache := newTestService(api)

	_, err := service.WhoAmI(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, credentials.Set(ctx, "abcd1234"))
	info, err := service.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Me", info.Name)

	require.NoError(t, service.Logout(ctx))
	_, err = credentials.Get(ctx)
	assert.ErrorIs(t, err, credential.ErrNoAPIKey)
	assert.Equal(t, 1, cache.resets)
}
