// Package health 为本地桥接服务提供存活与就绪检查。
package health

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"aliaskit/client/internal/logger"
)

// Pinger 可以探测连通性的依赖（如 Redis 凭据存储）
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker 本地缓存的健康检查接口
type StoreChecker interface {
	Health() error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	checks map[string]healthcheck.Check
	logger *zap.Logger
}

// Option 健康检查选项
type Option func(*HealthChecker)

// WithCredentialStore 增加凭据存储的就绪检查
func WithCredentialStore(p Pinger) Option {
	return func(hc *HealthChecker) {
		hc.addReadiness("credential_store", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return p.Ping(ctx)
		})
	}
}

// WithUpstream 增加对别名服务域名解析的就绪检查
func WithUpstream(baseURL string) Option {
	return func(hc *HealthChecker) {
		u, err := url.Parse(baseURL)
		if err != nil || u.Hostname() == "" {
			return
		}
		hc.addReadiness("upstream_dns", healthcheck.DNSResolveCheck(u.Hostname(), 2*time.Second))
	}
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store StoreChecker, log *zap.Logger, opts ...Option) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		checks: make(map[string]healthcheck.Check),
		logger: logger.OrNop(log),
	}

	hc.health.AddLivenessCheck("goroutine_threshold", healthcheck.GoroutineCountCheck(1000))
	hc.addReadiness("alias_cache", store.Health)
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

func (hc *HealthChecker) addReadiness(name string, check healthcheck.Check) {
	hc.checks[name] = check
	hc.health.AddReadinessCheck(name, check)
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// CheckHealth 执行全部就绪检查并返回结果
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string, len(hc.checks))
	for name, check := range hc.checks {
		if err := check(); err != nil {
			hc.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			results[name] = fmt.Sprintf("ERROR: %v", err)
			continue
		}
		results[name] = "OK"
	}
	return results
}
