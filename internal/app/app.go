// Package app 按配置组装客户端的各个组件。
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aliaskit/client/internal/apiclient"
	"aliaskit/client/internal/auth"
	jwtpkg "aliaskit/client/internal/auth/jwt"
	"aliaskit/client/internal/config"
	"aliaskit/client/internal/credential"
	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/health"
	"aliaskit/client/internal/logger"
	"aliaskit/client/internal/monitoring"
	"aliaskit/client/internal/repository"
	"aliaskit/client/internal/storage"
	"aliaskit/client/internal/storage/memory"
	sqlstore "aliaskit/client/internal/storage/sql"
	httptransport "aliaskit/client/internal/transport/http"
	"aliaskit/client/internal/websocket"
)

// App 持有一次运行所需的全部组件
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
	Store       storage.AliasStore
	Credentials credential.Provider
	API         *apiclient.Client
	Repository  *repository.AliasRepository
	Auth        *auth.Service

	pinger  health.Pinger
	closers []func() error
}

// New 按配置创建本地缓存、凭据存储、API 客户端、别名仓库和账户服务
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: monitoring.NewMetrics(),
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)
	log.Info("alias cache ready", zap.String("driver", cfg.Storage.Driver))

	credentials, err := a.openCredentials(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Credentials = credentials

	api, err := apiclient.New(apiclient.Options{
		BaseURL:    cfg.API.BaseURL(),
		Timeout:    cfg.API.Timeout,
		RateLimit:  cfg.API.RateLimit,
		DeviceName: cfg.API.DeviceName,
		Logger:     log,
		Metrics:    a.Metrics,
	}, credentials)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.API = api

	a.Repository = repository.NewAliasRepository(api, store, cfg.Alias.PageSize, log, a.Metrics)
	a.Auth = auth.NewService(api, credentials, a.Repository, log)

	log.Info("client initialized",
		zap.String("environment", cfg.API.Environment),
		zap.String("base_url", api.BaseURL()),
		zap.String("credential_driver", cfg.Credential.Driver),
	)
	return a, nil
}

// openStore 根据 storage.driver 打开本地缓存
func openStore(cfg config.StorageConfig) (storage.AliasStore, error) {
	if cfg.Driver == "memory" {
		return memory.NewStore(), nil
	}
	store, err := sqlstore.NewStore(cfg.Driver, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s alias cache: %w", cfg.Driver, err)
	}
	return store, nil
}

// openCredentials 根据 credential.driver 创建凭据存储，配置了密钥时加密保存
func (a *App) openCredentials(ctx context.Context, cfg *config.Config) (credential.Provider, error) {
	var provider credential.Provider
	switch cfg.Credential.Driver {
	case "redis":
		redisProvider, err := credential.NewRedisProvider(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Credential.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect credential store: %w", err)
		}
		a.pinger = redisProvider
		a.closers = append(a.closers, redisProvider.Close)
		provider = redisProvider
	default:
		provider = credential.NewMemoryProvider("")
	}

	if cfg.Credential.Secret != "" {
		sealed, err := credential.NewSealedProvider(provider, cfg.Credential.Secret)
		if err != nil {
			return nil, err
		}
		provider = sealed
	}

	// 初始 API Key 经由最外层写入，加密配置同样生效
	if key := domain.APIKey(cfg.Credential.APIKey); !key.Empty() && cfg.Credential.Driver == "memory" {
		if err := provider.Set(ctx, key); err != nil {
			return nil, fmt.Errorf("failed to load api key: %w", err)
		}
	}
	return provider, nil
}

// HealthChecker 创建桥接服务使用的健康检查器
func (a *App) HealthChecker() *health.HealthChecker {
	opts := []health.Option{health.WithUpstream(a.Config.API.BaseURL())}
	if a.pinger != nil {
		opts = append(opts, health.WithCredentialStore(a.pinger))
	}
	return health.NewHealthChecker(a.Store, a.Logger, opts...)
}

// Session 桥接服务启动后供 UI 使用的会话令牌
type Session struct {
	Address string
	Token   *jwtpkg.Token
}

// Serve 在 bridge.host:bridge.port 上运行本地 UI 桥接服务，直到 ctx 结束。
//
// 监听开始前通过 ready 回调交出访问地址和会话令牌，ready 可为 nil。
func (a *App) Serve(ctx context.Context, ready func(Session)) error {
	cfg := a.Config.Bridge

	jwtManager, err := jwtpkg.NewManager(cfg.SessionSecret, "aliaskit-bridge", cfg.SessionTTL)
	if err != nil {
		return err
	}
	token, err := jwtManager.Issue()
	if err != nil {
		return err
	}

	if !a.Config.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := websocket.NewHub(cfg.AllowedOrigins, a.Metrics, a.Logger)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		Repository:   a.Repository,
		AuthService:  a.Auth,
		JWTManager:   jwtManager,
		WebSocketHub: hub,
		Health:       a.HealthChecker(),
		Metrics:      a.Metrics,
		Logger:       a.Logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	updates, unsubscribe := a.Repository.Subscribe()
	defer unsubscribe()

	group, groupCtx := errgroup.WithContext(ctx)

	// WebSocket Hub goroutine
	group.Go(func() error {
		hub.Run(groupCtx)
		return nil
	})

	// 仓库快照转发 goroutine
	group.Go(func() error {
		hub.Forward(groupCtx, updates)
		return nil
	})

	// HTTP 服务器 goroutine
	group.Go(func() error {
		a.Logger.Info("starting bridge server", zap.String("address", addr))
		if ready != nil {
			ready(Session{Address: addr, Token: token})
		}
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("bridge server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		a.Logger.Info("shutting down bridge server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("bridge server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.Logger.Info("bridge server stopped")
	return nil
}

// Close 按创建的逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
