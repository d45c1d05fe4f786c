package repository

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"aliaskit/client/internal/domain"
)

// CreationContext 创建别名页面需要的数据
type CreationContext struct {
	Options   domain.AliasOptions `json:"options"`
	Mailboxes []domain.Mailbox    `json:"mailboxes"`
}

// LoadCreationContext 并发获取别名选项与邮箱列表，邮箱按 email 排序。
//
// 每次调用都重新获取选项，后缀签名不跨调用复用。
func (r *AliasRepository) LoadCreationContext(ctx context.Context, hostname string) (CreationContext, error) {
	var result CreationContext

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		options, err := r.api.AliasOptions(gctx, hostname)
		if err != nil {
			return err
		}
		result.Options = options
		return nil
	})
	g.Go(func() error {
		mailboxes, err := r.api.Mailboxes(gctx)
		if err != nil {
			return err
		}
		sortMailboxesByEmail(mailboxes)
		result.Mailboxes = mailboxes
		return nil
	})

	if err := g.Wait(); err != nil {
		return CreationContext{}, err
	}
	return result, nil
}

func sortMailboxesByEmail(mailboxes []domain.Mailbox) {
	sort.SliceStable(mailboxes, func(i, j int) bool {
		return mailboxes[i].Email < mailboxes[j].Email
	})
}
