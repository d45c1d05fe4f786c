package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/stretchr/testify/mock"

	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/storage/memory"
)

// MockAliasAPI 模拟服务端接口
type MockAliasAPI struct {
	mock.Mock
}

func (m *MockAliasAPI) ListAliases(ctx context.Context, page int, searchTerm string) ([]domain.Alias, error) {
	args := m.Called(ctx, page, searchTerm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Alias), args.Error(1)
}

func (m *MockAliasAPI) GetAlias(ctx context.Context, id int64) (domain.Alias, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Alias), args.Error(1)
}

func (m *MockAliasAPI) CreateAlias(ctx context.Context, req domain.AliasCreationRequest) (domain.Alias, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Alias), args.Error(1)
}

func (m *MockAliasAPI) CreateRandomAlias(ctx context.Context, mode domain.RandomAliasMode, note *string, hostname string) (domain.Alias, error) {
	args := m.Called(ctx, mode, note, hostname)
	return args.Get(0).(domain.Alias), args.Error(1)
}

func (m *MockAliasAPI) UpdateAlias(ctx context.Context, id int64, update domain.AliasUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockAliasAPI) ToggleAlias(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAliasAPI) DeleteAlias(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAliasAPI) AliasActivities(ctx context.Context, id int64, page int) ([]domain.AliasActivity, error) {
	args := m.Called(ctx, id, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AliasActivity), args.Error(1)
}

func (m *MockAliasAPI) AliasOptions(ctx context.Context, hostname string) (domain.AliasOptions, error) {
	args := m.Called(ctx, hostname)
	return args.Get(0).(domain.AliasOptions), args.Error(1)
}

func (m *MockAliasAPI) Mailboxes(ctx context.Context) ([]domain.Mailbox, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Mailbox), args.Error(1)
}

var errStoreDown = errors.New("store unavailable")

// failingStore 写入总是失败的缓存
type failingStore struct {
	*memory.Store
}

func (s failingStore) Upsert(domain.Alias) error { return errStoreDown }
func (s failingStore) UpsertMany([]domain.Alias) error { return errStoreDown }
func (s failingStore) Delete(int64) error { return errStoreDown }

func newAlias(id int64, created int64) domain.Alias {
	return domain.Alias{
		ID:                id,
		Email:             fmt.Sprintf("alias%d@sl.test", id),
		Enabled:           true,
		CreationTimestamp: created,
		Mailboxes:         []domain.MailboxLite{{ID: 1, Email: "me@example.com"}},
	}
}

// aliasRange 生成 ID 从 first 开始的 n 个别名，创建时间递减
func aliasRange(first int64, n int) []domain.Alias {
	out := make([]domain.Alias, 0, n)
	for i := 0; i < n; i++ {
		id := first + int64(i)
		out = append(out, newAlias(id, 10_000-id))
	}
	return out
}

func aliasIDs(aliases []domain.Alias) []int64 {
	out := make([]int64, 0, len(aliases))
	for _, alias := range aliases {
		out = append(out, alias.ID)
	}
	return out
}
