// Package storagetest 提供 AliasStore 各实现共用的行为测试。
package storagetest

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/storage"
)

// Factory 为每个子测试创建一个空的存储实例。
type Factory func(t *testing.T) storage.AliasStore

// NewAlias 构造测试用别名。
func NewAlias(id int64, email string, created int64) domain.Alias {
	return domain.Alias{
		ID:                id,
		Email:             email,
		Enabled:           true,
		CreationTimestamp: created,
		Mailboxes:         []domain.MailboxLite{{ID: 1, Email: "me@example.com"}},
	}
}

func strPtr(s string) *string { return &s }

// Run 执行完整的行为测试。
func Run(t *testing.T, newStore Factory) {
	t.Run("Upsert 后读取", func(t *testing.T) {
		s := newStore(t)
		name := "Shopping"
		alias := NewAlias(1, "shop@sl.test", 100)
		alias.Name = &name
		alias.Note = strPtr("amazon")
		alias.LatestActivity = &domain.ActivityRecord{
			Action:    domain.ActivityForward,
			Contact:   domain.ContactLite{Email: "shop@amazon.test", Name: strPtr("Amazon"), ReverseAlias: "ra"},
			Timestamp: 150,
		}
		alias.Mailboxes = []domain.MailboxLite{{ID: 2, Email: "b@example.com"}, {ID: 1, Email: "a@example.com"}}

		require.NoError(t, s.Upsert(alias))

		got, err := s.Get(1)
		require.NoError(t, err)
		assert.Equal(t, alias, *got)
	})

	t.Run("Upsert 覆盖全部字段且不产生重复", func(t *testing.T) {
		s := newStore(t)
		alias := NewAlias(1, "shop@sl.test", 100)
		alias.Note = strPtr("first")
		require.NoError(t, s.Upsert(alias))

		updated := NewAlias(1, "shop@sl.test", 100)
		updated.Enabled = false
		updated.ForwardCount = 7
		updated.Mailboxes = []domain.MailboxLite{{ID: 3, Email: "c@example.com"}}
		require.NoError(t, s.Upsert(updated))

		count, err := s.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		got, err := s.Get(1)
		require.NoError(t, err)
		assert.Equal(t, updated, *got)
	})

	t.Run("非法别名被拒绝", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Upsert(domain.Alias{Email: "x@sl.test"}), storage.ErrInvalidAlias)
		assert.ErrorIs(t, s.UpsertMany([]domain.Alias{NewAlias(1, "a@sl.test", 1), {ID: 2}}), storage.ErrInvalidAlias)

		count, err := s.Count()
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("读取不存在的别名", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(404)
		assert.ErrorIs(t, err, storage.ErrAliasNotFound)
	})

	t.Run("分页按创建时间倒序且同时间按 ID 倒序", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertMany([]domain.Alias{
			NewAlias(1, "a@sl.test", 100),
			NewAlias(2, "b@sl.test", 300),
			NewAlias(3, "c@sl.test", 200),
			NewAlias(4, "d@sl.test", 200),
			NewAlias(5, "e@sl.test", 50),
		}))

		first, err := s.Page(0, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 4}, ids(first))

		second, err := s.Page(1, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 1}, ids(second))

		third, err := s.Page(2, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, ids(third))

		beyond, err := s.Page(3, 2)
		require.NoError(t, err)
		assert.Empty(t, beyond)
	})

	t.Run("搜索不区分大小写并覆盖 email note name", func(t *testing.T) {
		s := newStore(t)
		byEmail := NewAlias(1, "Shop@sl.test", 100)
		byNote := NewAlias(2, "x@sl.test", 200)
		byNote.Note = strPtr("used for SHOPPING")
		byName := NewAlias(3, "y@sl.test", 300)
		byName.Name = strPtr("eShop")
		other := NewAlias(4, "z@sl.test", 400)
		literal := NewAlias(5, "percent_100%@sl.test", 500)
		require.NoError(t, s.UpsertMany([]domain.Alias{byEmail, byNote, byName, other, literal}))

		matched, err := s.SearchPage(0, 10, "  shop ")
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 2, 1}, ids(matched))

		all, err := s.SearchPage(0, 10, "   ")
		require.NoError(t, err)
		assert.Len(t, all, 5)

		wildcard, err := s.SearchPage(0, 10, "_100%")
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, ids(wildcard))

		percent, err := s.SearchPage(0, 10, "%")
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, ids(percent))
	})

	t.Run("非 ASCII 字符同样不区分大小写", func(t *testing.T) {
		s := newStore(t)
		cyrillic := NewAlias(1, "a@sl.test", 100)
		cyrillic.Note = strPtr("ПОДПИСКА на журнал")
		accented := NewAlias(2, "b@sl.test", 200)
		accented.Name = strPtr("Ärger")
		require.NoError(t, s.UpsertMany([]domain.Alias{cyrillic, accented, NewAlias(3, "c@sl.test", 300)}))

		matched, err := s.SearchPage(0, 10, "подписка")
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids(matched))

		matched, err = s.SearchPage(0, 10, "ÄRG")
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids(matched))
	})

	t.Run("搜索不会跨字段匹配", func(t *testing.T) {
		s := newStore(t)
		alias := NewAlias(1, "shop@sl.test", 100)
		alias.Note = strPtr("note")
		require.NoError(t, s.Upsert(alias))

		matched, err := s.SearchPage(0, 10, "sl.testnote")
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("删除与清空", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertMany([]domain.Alias{NewAlias(1, "a@sl.test", 1), NewAlias(2, "b@sl.test", 2)}))

		require.NoError(t, s.Delete(1))
		require.NoError(t, s.Delete(1))
		_, err := s.Get(1)
		assert.ErrorIs(t, err, storage.ErrAliasNotFound)

		require.NoError(t, s.ClearAll())
		count, err := s.Count()
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("健康检查", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Health())
	})

	t.Run("属性", func(t *testing.T) {
		RunProperties(t, newStore)
	})
}

// RunProperties 使用随机输入验证幂等与顺序确定性。
func RunProperties(t *testing.T, newStore Factory) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	s := newStore(t)

	properties.Property("upsert_is_idempotent", prop.ForAll(
		func(id int64, created int64, times int) bool {
			if err := s.ClearAll(); err != nil {
				return false
			}
			alias := NewAlias(id, fmt.Sprintf("a%d@sl.test", id), created)
			for i := 0; i < times; i++ {
				if err := s.Upsert(alias); err != nil {
					return false
				}
			}
			count, err := s.Count()
			if err != nil || count != 1 {
				return false
			}
			got, err := s.Get(id)
			return err == nil && got.Email == alias.Email && got.CreationTimestamp == created
		},
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(0, 2_000_000_000),
		gen.IntRange(1, 5),
	))

	properties.Property("pages_are_deterministic_and_cover_everything", prop.ForAll(
		func(timestamps []int64, size int) bool {
			if err := s.ClearAll(); err != nil {
				return false
			}
			aliases := make([]domain.Alias, 0, len(timestamps))
			for i, ts := range timestamps {
				id := int64(i + 1)
				aliases = append(aliases, NewAlias(id, fmt.Sprintf("a%d@sl.test", id), ts))
			}
			if err := s.UpsertMany(aliases); err != nil {
				return false
			}

			expected := append([]domain.Alias(nil), aliases...)
			domain.SortAliases(expected)

			var collected []int64
			for index := 0; ; index++ {
				page, err := s.Page(index, size)
				if err != nil {
					return false
				}
				again, err := s.Page(index, size)
				if err != nil || !equalIDs(ids(page), ids(again)) {
					return false
				}
				if len(page) == 0 {
					break
				}
				collected = append(collected, ids(page)...)
			}
			return equalIDs(collected, ids(expected))
		},
		gen.SliceOfN(25, gen.Int64Range(0, 5)),
		gen.IntRange(1, 7),
	))

	properties.TestingRun(t)
}

func ids(aliases []domain.Alias) []int64 {
	out := make([]int64, 0, len(aliases))
	for _, alias := range aliases {
		out = append(out, alias.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
