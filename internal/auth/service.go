// Package auth 管理账户会话：登录、MFA 二次验证、登出与当前账户查询。
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"aliaskit/client/internal/credential"
	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/logger"
)

var (
	// ErrMFATokenEmpty MFA 验证码为空
	ErrMFATokenEmpty = errors.New("mfa token is empty")
	// ErrNotLoggedIn 尚未保存 API Key
	ErrNotLoggedIn = errors.New("not logged in")
)

// Authenticator 登录相关的服务端接口，*apiclient.Client 满足该接口
type Authenticator interface {
	Login(ctx context.Context, email, password string) (domain.LoginResult, error)
	VerifyMFA(ctx context.Context, mfaKey, token string) (domain.APIKey, error)
	UserInfo(ctx context.Context) (domain.UserInfo, error)
	CheckAPIKey(ctx context.Context, key domain.APIKey) (domain.UserInfo, error)
}

// CacheResetter 切换账户时需要清空的本地状态
type CacheResetter interface {
	Reset() error
}

// Service 账户会话服务。
//
// 凭据只在这里写入或清除，别名仓库和 API 客户端只读取。
type Service struct {
	api         Authenticator
	credentials credential.Provider
	cache       CacheResetter
	logger      *zap.Logger
}

// NewService 创建账户会话服务
func NewService(api Authenticator, credentials credential.Provider, cache CacheResetter, log *zap.Logger) *Service {
	return &Service{
		api:         api,
		credentials: credentials,
		cache:       cache,
		logger:      logger.OrNop(log).Named("auth"),
	}
}

// Login 使用邮箱和密码登录。
//
// 账户开启 MFA 时不保存任何凭据，返回的 LoginResult.MFAEnabled 为 true，
// 调用方需要用 MFAKey 调用 VerifyMFA 完成登录。
func (s *Service) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	email = strings.TrimSpace(email)
	if err := domain.ValidateCredentials(email, password); err != nil {
		return domain.LoginResult{}, err
	}

	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login failed", zap.String("email", email), zap.Error(err))
		return domain.LoginResult{}, err
	}
	if result.MFAEnabled {
		s.logger.Info("MFA required", zap.String("email", email))
		return result, nil
	}

	if err := s.store(ctx, result.APIKey); err != nil {
		return domain.LoginResult{}, err
	}
	s.logger.Info("Logged in", zap.String("email", email), zap.String("api_key", result.APIKey.Masked()))
	return result, nil
}

// VerifyMFA 完成二次验证并保存 API Key
func (s *Service) VerifyMFA(ctx context.Context, mfaKey, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMFATokenEmpty
	}

	key, err := s.api.VerifyMFA(ctx, mfaKey, token)
	if err != nil {
		s.logger.Warn("MFA verification failed", zap.Error(err))
		return err
	}
	if err := s.store(ctx, key); err != nil {
		return err
	}
	s.logger.Info("Logged in with MFA", zap.String("api_key", key.Masked()))
	return nil
}

// UseAPIKey 直接使用已有的 API Key 登录。
//
// 先用新 Key 查询账户信息，通过后才清空缓存并替换凭据；被拒绝时原会话不变。
func (s *Service) UseAPIKey(ctx context.Context, key domain.APIKey) (domain.UserInfo, error) {
	if key.Empty() {
		return domain.UserInfo{}, credential.ErrNoAPIKey
	}

	info, err := s.api.CheckAPIKey(ctx, key)
	if err != nil {
		return domain.UserInfo{}, err
	}
	if err := s.store(ctx, key); err != nil {
		return domain.UserInfo{}, err
	}
	s.logger.Info("Logged in with api key", zap.String("email", info.Email), zap.String("api_key", key.Masked()))
	return info, nil
}

// WhoAmI 查询当前账户
func (s *Service) WhoAmI(ctx context.Context) (domain.UserInfo, error) {
	if _, err := s.credentials.Get(ctx); err != nil {
		if errors.Is(err, credential.ErrNoAPIKey) {
			return domain.UserInfo{}, ErrNotLoggedIn
		}
		return domain.UserInfo{}, err
	}
	return s.api.UserInfo(ctx)
}

// Logout 清除凭据和本地缓存
func (s *Service) Logout(ctx context.Context) error {
	if err := s.credentials.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear api key: %w", err)
	}
	if err := s.cache.Reset(); err != nil {
		return err
	}
	s.logger.Info("Logged out")
	return nil
}

// store 保存新凭据。先清空旧账户的缓存，避免不同账户的别名混在一起。
func (s *Service) store(ctx context.Context, key domain.APIKey) error {
	if err := s.cache.Reset(); err != nil {
		return err
	}
	if err := s.credentials.Set(ctx, key); err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}
