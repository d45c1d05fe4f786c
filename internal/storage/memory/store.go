package memory

import (
	"sync"

	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/storage"
)

// Store 使用内存保存别名缓存，主要用于开发验证和测试。
type Store struct {
	mu      sync.RWMutex
	aliases map[int64]domain.Alias
}

var _ storage.AliasStore = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		aliases: make(map[int64]domain.Alias),
	}
}

// Upsert 插入或覆盖别名。
func (s *Store) Upsert(alias domain.Alias) error {
	if err := storage.ValidateAlias(alias); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.aliases[alias.ID] = alias.Clone()
	return nil
}

// UpsertMany 批量写入，任何一条非法则全部不写。
func (s *Store) UpsertMany(aliases []domain.Alias) error {
	for _, alias := range aliases {
		if err := storage.ValidateAlias(alias); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alias := range aliases {
		s.aliases[alias.ID] = alias.Clone()
	}
	return nil
}

// Delete 删除别名。
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.aliases, id)
	return nil
}

// Get 根据 ID 获取别名。
func (s *Store) Get(id int64) (*domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alias, ok := s.aliases[id]
	if !ok {
		return nil, storage.ErrAliasNotFound
	}
	out := alias.Clone()
	return &out, nil
}

// Page 返回第 index 页。
func (s *Store) Page(index, size int) ([]domain.Alias, error) {
	return s.SearchPage(index, size, "")
}

// SearchPage 返回匹配 term 的第 index 页。
func (s *Store) SearchPage(index, size int, term string) ([]domain.Alias, error) {
	s.mu.RLock()
	matched := make([]domain.Alias, 0, len(s.aliases))
	for _, alias := range s.aliases {
		if alias.Matches(term) {
			matched = append(matched, alias)
		}
	}
	s.mu.RUnlock()

	domain.SortAliases(matched)

	start, end := storage.PageBounds(index, size, len(matched))
	result := make([]domain.Alias, 0, end-start)
	for _, alias := range matched[start:end] {
		result = append(result, alias.Clone())
	}
	return result, nil
}

// ClearAll 清空缓存。
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aliases = make(map[int64]domain.Alias)
	return nil
}

// Count 返回缓存的别名数量。
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.aliases), nil
}

// Health 内存存储始终可用。
func (s *Store) Health() error {
	return nil
}

// Close 内存存储无需释放资源。
func (s *Store) Close() error {
	return nil
}
