// Package apiclient 执行对别名服务的单次 HTTP 调用，并把状态码映射为类型化错误。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"aliaskit/client/internal/credential"
	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/endpoint"
	"aliaskit/client/internal/logger"
	"aliaskit/client/internal/monitoring"
)

// RequestIDHeader 每个请求携带的关联 ID
const RequestIDHeader = "X-Request-ID"

const maxResponseBytes = 4 << 20

// Doer 发送 HTTP 请求，*http.Client 满足该接口。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options 客户端配置
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // 每秒请求数，0 表示不限制
	DeviceName string
	Doer       Doer // 为空时使用带 Timeout 的 *http.Client
	Logger     *zap.Logger
	Metrics    *monitoring.Metrics
}

// Client 别名服务客户端。
//
// 每次调用只尝试一次，失败原样返回给调用方，由调用方决定是否重试。
type Client struct {
	builder     *endpoint.Builder
	credentials credential.Provider
	doer        Doer
	limiter     *rate.Limiter
	device      string
	logger      *zap.Logger
	metrics     *monitoring.Metrics
}

// New 创建客户端。基础地址非法时返回 KindBadURLString。
func New(opts Options, credentials credential.Provider) (*Client, error) {
	builder, err := endpoint.NewBuilder(opts.BaseURL)
	if err != nil {
		return nil, newError(KindBadURLString, 0, err)
	}

	doer := opts.Doer
	if doer == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	device := opts.DeviceName
	if device == "" {
		device = "aliaskit"
	}

	return &Client{
		builder:     builder,
		credentials: credentials,
		doer:        doer,
		limiter:     limiter,
		device:      device,
		logger:      logger.OrNop(opts.Logger).Named("apiclient"),
		metrics:     opts.Metrics,
	}, nil
}

// BaseURL 返回当前使用的基础地址
func (c *Client) BaseURL() string {
	return c.builder.BaseURL()
}

// Execute 发送请求并按状态码解释响应。
//
// out 为 nil 时忽略成功响应的响应体；否则响应体为空返回 ErrNoData，
// 解析失败返回 ErrSerializationFailed。
func (c *Client) Execute(req *http.Request, out any) error {
	resp, err := c.doer.Do(req)
	if err != nil {
		return newError(KindNetwork, 0, err)
	}
	if resp == nil {
		return newError(KindUnknownResponseStatusCode, 0, nil)
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	if status <= 0 {
		return newError(KindUnknownResponseStatusCode, status, nil)
	}
	if status < 200 || status > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return statusError(status)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return newError(KindNetwork, status, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return newError(KindNoData, status, nil)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return newError(KindSerializationFailed, status, err)
	}
	return nil
}

type buildFunc func(ctx context.Context, key domain.APIKey) (*http.Request, error)

// call 组装请求、等待限速、执行并记录结果。
func (c *Client) call(ctx context.Context, op string, authed bool, build buildFunc, out any) (err error) {
	start := time.Now()
	requestID := uuid.NewString()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = KindOf(err).String()
		}
		c.metrics.RecordAPIRequest(op, outcome, time.Since(start))
	}()

	var key domain.APIKey
	if authed {
		key, err = c.apiKey(ctx)
		if err != nil {
			return err
		}
	}

	req, err := build(ctx, key)
	if err != nil {
		if errors.Is(err, endpoint.ErrMissingAPIKey) {
			return newError(KindMissingAPIKey, 0, nil)
		}
		return newError(KindBadURLString, 0, err)
	}
	req.Header.Set(RequestIDHeader, requestID)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return newError(KindNetwork, 0, err)
		}
	}

	err = c.Execute(req, out)

	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
	}
	if authed {
		fields = append(fields, zap.String("api_key", key.Masked()))
	}
	if err != nil {
		c.logger.Warn("API request failed", append(fields, zap.Error(err))...)
		return err
	}
	c.logger.Debug("API request completed", fields...)
	return nil
}

func (c *Client) apiKey(ctx context.Context) (domain.APIKey, error) {
	if c.credentials == nil {
		return "", newError(KindMissingAPIKey, 0, nil)
	}
	key, err := c.credentials.Get(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrNoAPIKey) {
			return "", newError(KindMissingAPIKey, 0, nil)
		}
		return "", fmt.Errorf("failed to read api key: %w", err)
	}
	return key, nil
}
