// Package credential 保存与读取当前账户的 API Key。
package credential

import (
	"context"
	"errors"

	"aliaskit/client/internal/domain"
)

// ErrNoAPIKey 尚未登录或已登出
var ErrNoAPIKey = errors.New("no API key stored")

// Provider API Key 的保存位置。
//
// 核心只调用 Get；Set 与 Clear 由登录、登出流程使用。
type Provider interface {
	Get(ctx context.Context) (domain.APIKey, error)
	Set(ctx context.Context, key domain.APIKey) error
	Clear(ctx context.Context) error
}
