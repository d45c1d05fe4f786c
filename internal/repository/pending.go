package repository

import "aliaskit/client/internal/domain"

// pendingChange 拉取进行期间已被服务端确认的单个别名变更
type pendingChange struct {
	deleted bool
	created bool
	enabled bool
	alias   *domain.Alias // 确认后的完整记录，nil 时只知道启用状态
}

// trackLocked 在有拉取进行中时记录变更，供其返回时覆盖旧数据
func (r *AliasRepository) trackLocked(id int64, change pendingChange) {
	if !r.inFlight {
		return
	}
	if r.pending == nil {
		r.pending = make(map[int64]pendingChange)
	}
	if prev, ok := r.pending[id]; ok && prev.created {
		change.created = true
	}
	r.pending[id] = change
}

// trackAliasLocked 记录确认后的完整别名
func (r *AliasRepository) trackAliasLocked(alias domain.Alias, created bool) {
	confirmed := alias.Clone()
	r.trackLocked(alias.ID, pendingChange{created: created, alias: &confirmed, enabled: alias.Enabled})
}

// trackToggleLocked 只知道启用状态时，与已记录的完整别名合并
func (r *AliasRepository) trackToggleLocked(id int64, enabled bool) {
	change := pendingChange{enabled: enabled}
	if prev, ok := r.pending[id]; ok && prev.alias != nil && !prev.deleted {
		updated := prev.alias.Clone()
		updated.Enabled = enabled
		change.alias = &updated
	}
	r.trackLocked(id, change)
}

// reconcileLocked 用拉取期间已确认的变更改写服务端在变更前给出的一页
func (r *AliasRepository) reconcileLocked(page []domain.Alias) []domain.Alias {
	if len(r.pending) == 0 {
		return page
	}
	out := make([]domain.Alias, 0, len(page))
	for _, alias := range page {
		change, ok := r.pending[alias.ID]
		switch {
		case !ok:
		case change.deleted:
			continue
		case change.alias != nil:
			alias = change.alias.Clone()
		default:
			alias.Enabled = change.enabled
		}
		out = append(out, alias)
	}
	return out
}

// createdHeadLocked 返回拉取期间新建且不在 page 中的别名，保持列表中的顺序
func (r *AliasRepository) createdHeadLocked(page []domain.Alias) []domain.Alias {
	if len(r.pending) == 0 {
		return nil
	}
	inPage := make(map[int64]struct{}, len(page))
	for _, alias := range page {
		inPage[alias.ID] = struct{}{}
	}
	var head []domain.Alias
	for _, alias := range r.aliases {
		change, ok := r.pending[alias.ID]
		if !ok || !change.created || change.deleted {
			continue
		}
		if _, dup := inPage[alias.ID]; !dup {
			head = append(head, alias)
		}
	}
	return head
}
