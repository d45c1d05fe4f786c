// Package repository 维护别名列表的会话状态，并让内存列表与本地缓存保持一致。
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/logger"
	"aliaskit/client/internal/monitoring"
	"aliaskit/client/internal/storage"
)

// DefaultPageSize 服务端每页返回的别名数量
const DefaultPageSize = 20

var (
	// ErrEmptyUpdate 更新请求不包含任何字段
	ErrEmptyUpdate = errors.New("update contains no fields")
)

// AliasAPI 仓库依赖的服务端操作，*apiclient.Client 满足该接口。
type AliasAPI interface {
	ListAliases(ctx context.Context, page int, searchTerm string) ([]domain.Alias, error)
	GetAlias(ctx context.Context, id int64) (domain.Alias, error)
	CreateAlias(ctx context.Context, req domain.AliasCreationRequest) (domain.Alias, error)
	CreateRandomAlias(ctx context.Context, mode domain.RandomAliasMode, note *string, hostname string) (domain.Alias, error)
	UpdateAlias(ctx context.Context, id int64, update domain.AliasUpdate) error
	ToggleAlias(ctx context.Context, id int64) (bool, error)
	DeleteAlias(ctx context.Context, id int64) error
	AliasActivities(ctx context.Context, id int64, page int) ([]domain.AliasActivity, error)
	AliasOptions(ctx context.Context, hostname string) (domain.AliasOptions, error)
	Mailboxes(ctx context.Context) ([]domain.Mailbox, error)
}

// AliasRepository 别名仓库。
//
// 所有状态变更（内存列表与本地缓存）在同一把锁内完成；网络调用期间不持锁。
// 每次拉取都带有发起时的代号和搜索词，重置或换词后返回的旧结果直接丢弃。
// 拉取期间确认的删除、切换、更新和创建记入 pending，返回的页在合并前按其改写。
type AliasRepository struct {
	api      AliasAPI
	store    storage.AliasStore
	pageSize int
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu         sync.Mutex
	aliases    []domain.Alias
	cursor     int
	term       string
	moreToLoad bool
	inFlight   bool
	generation uint64
	pending    map[int64]pendingChange

	observers map[int]chan Snapshot
	nextObsID int
}

// NewAliasRepository 创建别名仓库。pageSize 非正数时使用 DefaultPageSize。
func NewAliasRepository(api AliasAPI, store storage.AliasStore, pageSize int, log *zap.Logger, metrics *monitoring.Metrics) *AliasRepository {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &AliasRepository{
		api:        api,
		store:      store,
		pageSize:   pageSize,
		logger:     logger.OrNop(log).Named("repository"),
		metrics:    metrics,
		moreToLoad: true,
		observers:  make(map[int]chan Snapshot),
	}
}

// PageSize 返回分页大小
func (r *AliasRepository) PageSize() int {
	return r.pageSize
}

// FetchPage 拉取下一页；reset 为 true 时从第 0 页重新开始并清空列表。
//
// 非重置拉取在已有拉取进行中或没有更多数据时直接返回 nil，不发起请求。
func (r *AliasRepository) FetchPage(ctx context.Context, reset bool) error {
	return r.fetch(ctx, reset, nil)
}

// Search 以 term 重新开始分页。首尾空白被去掉，空 term 表示不过滤。
func (r *AliasRepository) Search(ctx context.Context, term string) error {
	trimmed := strings.TrimSpace(term)
	return r.fetch(ctx, true, &trimmed)
}

func (r *AliasRepository) fetch(ctx context.Context, reset bool, term *string) error {
	r.mu.Lock()
	if reset {
		r.generation++
		r.cursor = 0
		r.aliases = nil
		r.moreToLoad = true
		if term != nil {
			r.term = *term
		}
	} else if r.inFlight || !r.moreToLoad {
		r.mu.Unlock()
		return nil
	}
	r.inFlight = true
	r.pending = nil
	generation, cursor, activeTerm := r.generation, r.cursor, r.term
	r.publishLocked()
	r.mu.Unlock()

	page, err := r.api.ListAliases(ctx, cursor, activeTerm)

	r.mu.Lock()
	defer r.mu.Unlock()

	if generation != r.generation || activeTerm != r.term {
		r.metrics.RecordStaleFetch()
		r.logger.Debug("Discarded superseded page",
			zap.Int("cursor", cursor),
			zap.String("term", activeTerm),
			zap.Error(err),
		)
		return nil
	}
	r.inFlight = false
	defer func() { r.pending = nil }()

	if err != nil {
		r.metrics.RecordFetch("error")
		r.publishLocked()
		return err
	}

	merged := r.reconcileLocked(page)
	if err := r.store.UpsertMany(merged); err != nil {
		r.metrics.RecordFetch("store_error")
		r.publishLocked()
		return fmt.Errorf("failed to cache aliases: %w", err)
	}

	if cursor == 0 {
		r.aliases = append(r.createdHeadLocked(merged), cloneAll(merged)...)
	} else {
		r.aliases = mergeAppend(r.aliases, merged)
	}
	if len(page) > 0 {
		r.cursor++
	}
	r.moreToLoad = len(page) == r.pageSize

	r.metrics.RecordFetch("ok")
	r.metrics.UpdateAliasesLoaded(len(r.aliases))
	r.logger.Debug("Fetched alias page",
		zap.Int("page", cursor),
		zap.Int("count", len(page)),
		zap.Int("total", len(r.aliases)),
		zap.Bool("more_to_load", r.moreToLoad),
	)
	r.publishLocked()
	return nil
}

// Create 创建自定义别名，成功后插入列表头部并写入缓存。
//
// 服务端返回 409 时原样返回 apiclient.ErrDuplicatedAlias，调用方据此提示更换前缀。
func (r *AliasRepository) Create(ctx context.Context, req domain.AliasCreationRequest) (domain.Alias, error) {
	if err := req.Validate(); err != nil {
		return domain.Alias{}, err
	}

	alias, err := r.api.CreateAlias(ctx, req)
	if err != nil {
		r.metrics.RecordMutation("create", "error")
		return domain.Alias{}, err
	}
	if err := r.insertHead(alias); err != nil {
		return domain.Alias{}, err
	}
	r.metrics.RecordMutation("create", "ok")
	r.logger.Info("Alias created", zap.Int64("alias_id", alias.ID), zap.String("email", alias.Email))
	return alias.Clone(), nil
}

// CreateRandom 创建随机别名，合并方式与 Create 相同。
func (r *AliasRepository) CreateRandom(ctx context.Context, mode domain.RandomAliasMode, note *string, hostname string) (domain.Alias, error) {
	alias, err := r.api.CreateRandomAlias(ctx, mode, note, hostname)
	if err != nil {
		r.metrics.RecordMutation("create_random", "error")
		return domain.Alias{}, err
	}
	if err := r.insertHead(alias); err != nil {
		return domain.Alias{}, err
	}
	r.metrics.RecordMutation("create_random", "ok")
	r.logger.Info("Random alias created", zap.Int64("alias_id", alias.ID), zap.String("email", alias.Email))
	return alias.Clone(), nil
}

func (r *AliasRepository) insertHead(alias domain.Alias) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Upsert(alias); err != nil {
		return fmt.Errorf("failed to cache alias: %w", err)
	}
	list := make([]domain.Alias, 0, len(r.aliases)+1)
	list = append(list, alias.Clone())
	for _, existing := range r.aliases {
		if !existing.Same(alias) {
			list = append(list, existing)
		}
	}
	r.aliases = list
	r.trackAliasLocked(alias, true)
	r.metrics.UpdateAliasesLoaded(len(r.aliases))
	r.publishLocked()
	return nil
}

// Toggle 切换启用状态，以服务端确认的值同时更新列表和缓存。
func (r *AliasRepository) Toggle(ctx context.Context, id int64) (bool, error) {
	enabled, err := r.api.ToggleAlias(ctx, id)
	if err != nil {
		r.metrics.RecordMutation("toggle", "error")
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.indexLocked(id)
	var current domain.Alias
	switch {
	case index >= 0:
		current = r.aliases[index].Clone()
	default:
		cached, err := r.store.Get(id)
		if errors.Is(err, storage.ErrAliasNotFound) {
			r.trackToggleLocked(id, enabled)
			r.metrics.RecordMutation("toggle", "ok")
			return enabled, nil
		}
		if err != nil {
			return enabled, fmt.Errorf("failed to read cached alias: %w", err)
		}
		current = *cached
	}

	current.Enabled = enabled
	if err := r.store.Upsert(current); err != nil {
		return enabled, fmt.Errorf("failed to cache alias: %w", err)
	}
	if index >= 0 {
		r.aliases[index] = current
	}
	r.trackAliasLocked(current, false)

	r.metrics.RecordMutation("toggle", "ok")
	r.logger.Info("Alias toggled", zap.Int64("alias_id", id), zap.Bool("enabled", enabled))
	r.publishLocked()
	return enabled, nil
}

// Update 部分更新别名，随后重新获取以保证与服务端一致。
func (r *AliasRepository) Update(ctx context.Context, id int64, update domain.AliasUpdate) (domain.Alias, error) {
	if update.Empty() {
		return domain.Alias{}, ErrEmptyUpdate
	}

	if err := r.api.UpdateAlias(ctx, id, update); err != nil {
		r.metrics.RecordMutation("update", "error")
		return domain.Alias{}, err
	}
	alias, err := r.api.GetAlias(ctx, id)
	if err != nil {
		r.metrics.RecordMutation("update", "error")
		return domain.Alias{}, fmt.Errorf("alias updated but refresh failed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Upsert(alias); err != nil {
		return domain.Alias{}, fmt.Errorf("failed to cache alias: %w", err)
	}
	if index := r.indexLocked(id); index >= 0 {
		r.aliases[index] = alias.Clone()
	}
	r.trackAliasLocked(alias, false)

	r.metrics.RecordMutation("update", "ok")
	r.logger.Info("Alias updated", zap.Int64("alias_id", id))
	r.publishLocked()
	return alias.Clone(), nil
}

// Delete 删除别名。请求失败时列表和缓存都不变。
func (r *AliasRepository) Delete(ctx context.Context, id int64) error {
	if err := r.api.DeleteAlias(ctx, id); err != nil {
		r.metrics.RecordMutation("delete", "error")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(id); err != nil {
		return fmt.Errorf("failed to remove cached alias: %w", err)
	}
	if index := r.indexLocked(id); index >= 0 {
		r.aliases = append(r.aliases[:index:index], r.aliases[index+1:]...)
	}
	r.trackLocked(id, pendingChange{deleted: true})

	r.metrics.RecordMutation("delete", "ok")
	r.metrics.UpdateAliasesLoaded(len(r.aliases))
	r.logger.Info("Alias deleted", zap.Int64("alias_id", id))
	r.publishLocked()
	return nil
}

// Activities 获取别名的活动记录，不影响列表状态。
func (r *AliasRepository) Activities(ctx context.Context, id int64, page int) ([]domain.AliasActivity, error) {
	return r.api.AliasActivities(ctx, id, page)
}

// CachedPage 从本地缓存读取一页，用于离线展示。
func (r *AliasRepository) CachedPage(index int, term string) ([]domain.Alias, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store.SearchPage(index, r.pageSize, term)
}

// Reset 登出时清空缓存与会话状态，进行中的拉取结果将被丢弃。
func (r *AliasRepository) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear alias cache: %w", err)
	}
	r.generation++
	r.aliases = nil
	r.cursor = 0
	r.term = ""
	r.moreToLoad = true
	r.inFlight = false
	r.pending = nil

	r.metrics.UpdateAliasesLoaded(0)
	r.logger.Info("Alias repository reset")
	r.publishLocked()
	return nil
}

func (r *AliasRepository) indexLocked(id int64) int {
	for i, alias := range r.aliases {
		if alias.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(aliases []domain.Alias) []domain.Alias {
	out := make([]domain.Alias, 0, len(aliases))
	for _, alias := range aliases {
		out = append(out, alias.Clone())
	}
	return out
}

// mergeAppend 追加新一页，已存在的 ID 原位替换而不重复。
func mergeAppend(list, page []domain.Alias) []domain.Alias {
	index := make(map[int64]int, len(list))
	for i, alias := range list {
		index[alias.ID] = i
	}
	for _, alias := range page {
		if i, ok := index[alias.ID]; ok {
			list[i] = alias.Clone()
			continue
		}
		index[alias.ID] = len(list)
		list = append(list, alias.Clone())
	}
	return list
}
