package credential

import (
	"context"
	"sync"

	"aliaskit/client/internal/domain"
)

// MemoryProvider 进程内保存 API Key，进程退出即丢失。
type MemoryProvider struct {
	mu  sync.RWMutex
	key domain.APIKey
}

// NewMemoryProvider 创建内存凭据提供者，initial 可为空。
func NewMemoryProvider(initial domain.APIKey) *MemoryProvider {
	return &MemoryProvider{key: initial}
}

func (p *MemoryProvider) Get(ctx context.Context) (domain.APIKey, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.key.Empty() {
		return "", ErrNoAPIKey
	}
	return p.key, nil
}

func (p *MemoryProvider) Set(ctx context.Context, key domain.APIKey) error {
	if key.Empty() {
		return ErrNoAPIKey
	}
	p.mu.Lock()
	p.key = key
	p.mu.Unlock()
	return nil
}

func (p *MemoryProvider) Clear(ctx context.Context) error {
	p.mu.Lock()
	p.key = ""
	p.mu.Unlock()
	return nil
}
