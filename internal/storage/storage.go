package storage

import (
	"errors"

	"aliaskit/client/internal/domain"
)

var (
	// ErrAliasNotFound 别名未找到错误
	ErrAliasNotFound = errors.New("alias not found")
	// ErrInvalidAlias 别名缺少身份或地址
	ErrInvalidAlias = errors.New("invalid alias")
)

// AliasStore 定义本地别名缓存的存取操作。
//
// 顺序固定为创建时间倒序、同一时间按 ID 倒序，分页结果因此可重复。
// 搜索对 email、note、name 做不区分大小写的子串匹配，空白 term 不过滤。
type AliasStore interface {
	// Upsert 按 ID 插入或覆盖全部字段，同一 ID 永远只有一条记录。
	Upsert(alias domain.Alias) error
	// UpsertMany 在一个事务内批量 Upsert。
	UpsertMany(aliases []domain.Alias) error
	// Delete 删除指定 ID，不存在时不报错。
	Delete(id int64) error
	// Get 读取单条记录，不存在返回 ErrAliasNotFound。
	Get(id int64) (*domain.Alias, error)
	// Page 读取第 index 页（从 0 开始），每页 size 条。
	Page(index, size int) ([]domain.Alias, error)
	// SearchPage 读取匹配 term 的第 index 页。
	SearchPage(index, size int, term string) ([]domain.Alias, error)
	// ClearAll 清空全部缓存，用于登出。
	ClearAll() error
	// Count 返回缓存的别名数量。
	Count() (int, error)
	// Health 检查存储可用性。
	Health() error
	// Close 释放底层资源。
	Close() error
}

// ValidateAlias 检查写入前的基本约束。
func ValidateAlias(alias domain.Alias) error {
	if alias.ID <= 0 || alias.Email == "" {
		return ErrInvalidAlias
	}
	return nil
}

// PageBounds 把页号换算为切片区间，越界时返回 start == end。
func PageBounds(index, size, total int) (start, end int) {
	if index < 0 || size <= 0 {
		return 0, 0
	}
	start = index * size
	if start >= total {
		return total, total
	}
	end = start + size
	if end > total {
		end = total
	}
	return start, end
}
