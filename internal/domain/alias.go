package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Alias 表示服务端签发的一个转发邮箱别名。
//
// ID 是唯一身份标识，两个 ID 相同的 Alias 视为同一实体（见 Same）。
type Alias struct {
	ID                int64           `json:"id"`
	Email             string          `json:"email"`
	Name              *string         `json:"name"`
	Enabled           bool            `json:"enabled"`
	CreationTimestamp int64           `json:"creation_timestamp"` // 创建时间（Unix 秒）
	BlockCount        int             `json:"nb_block"`
	ForwardCount      int             `json:"nb_forward"`
	ReplyCount        int             `json:"nb_reply"`
	Note              *string         `json:"note"`
	PGPSupported      bool            `json:"support_pgp"`
	PGPDisabled       bool            `json:"disable_pgp"`
	Mailboxes         []MailboxLite   `json:"mailboxes"`
	LatestActivity    *ActivityRecord `json:"latest_activity"`
	Pinned            bool            `json:"pinned"`
}

// Same 按身份判断两个别名是否为同一实体，忽略其余字段差异。
func (a Alias) Same(other Alias) bool {
	return a.ID == other.ID
}

// Valid 报告别名是否至少关联一个邮箱（由服务端保证，客户端不补造）。
func (a Alias) Valid() bool {
	return len(a.Mailboxes) > 0
}

// Matches 判断别名的 email、note、name 是否包含 term（不区分大小写）。
// 空白 term 视为无过滤条件。
func (a Alias) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(a.Email), term) {
		return true
	}
	if a.Note != nil && strings.Contains(strings.ToLower(*a.Note), term) {
		return true
	}
	if a.Name != nil && strings.Contains(strings.ToLower(*a.Name), term) {
		return true
	}
	return false
}

// Clone 返回深拷贝，避免调用方通过共享切片或指针修改内部状态。
func (a Alias) Clone() Alias {
	out := a
	if a.Name != nil {
		name := *a.Name
		out.Name = &name
	}
	if a.Note != nil {
		note := *a.Note
		out.Note = &note
	}
	if a.Mailboxes != nil {
		out.Mailboxes = append([]MailboxLite(nil), a.Mailboxes...)
	}
	if a.LatestActivity != nil {
		activity := *a.LatestActivity
		if activity.Contact.Name != nil {
			name := *activity.Contact.Name
			activity.Contact.Name = &name
		}
		out.LatestActivity = &activity
	}
	return out
}

// SortAliases 按创建时间倒序排列，时间相同时按 ID 倒序，保证分页结果稳定。
func SortAliases(aliases []Alias) {
	sort.SliceStable(aliases, func(i, j int) bool {
		if aliases[i].CreationTimestamp != aliases[j].CreationTimestamp {
			return aliases[i].CreationTimestamp > aliases[j].CreationTimestamp
		}
		return aliases[i].ID > aliases[j].ID
	})
}

// MailboxLite 邮箱的轻量引用。
type MailboxLite struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// SortMailboxes 按 email 字典序排列，仅用于展示。
func SortMailboxes(mailboxes []MailboxLite) {
	sort.SliceStable(mailboxes, func(i, j int) bool {
		return mailboxes[i].Email < mailboxes[j].Email
	})
}

// ActivityAction 别名最近一次活动的类型。
type ActivityAction string

const (
	ActivityReply   ActivityAction = "reply"
	ActivityBlock   ActivityAction = "block"
	ActivityBounced ActivityAction = "bounced"
	ActivityForward ActivityAction = "forward"
)

// UnmarshalJSON 拒绝未知的活动类型。
func (a *ActivityAction) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch ActivityAction(raw) {
	case ActivityReply, ActivityBlock, ActivityBounced, ActivityForward:
		*a = ActivityAction(raw)
		return nil
	default:
		return fmt.Errorf("unknown activity action %q", raw)
	}
}

// ContactLite 联系人的轻量引用。
type ContactLite struct {
	Email        string  `json:"email"`
	Name         *string `json:"name"`
	ReverseAlias string  `json:"reverse_alias"`
}

// ActivityRecord 别名的最近一次活动。
type ActivityRecord struct {
	Action    ActivityAction `json:"action"`
	Contact   ContactLite    `json:"contact"`
	Timestamp int64          `json:"timestamp"`
}

// AliasActivity 别名活动列表中的一条记录。
type AliasActivity struct {
	Action              ActivityAction `json:"action"`
	From                string         `json:"from"`
	To                  string         `json:"to"`
	Timestamp           int64          `json:"timestamp"`
	ReverseAlias        string         `json:"reverse_alias"`
	ReverseAliasAddress string         `json:"reverse_alias_address"`
}

// AliasUpdate 描述别名的部分更新，nil 字段不会发送给服务端。
type AliasUpdate struct {
	Name       *string
	Note       *string
	MailboxIDs []int64
	Pinned     *bool
}

// Empty 报告更新是否不包含任何字段。
func (u AliasUpdate) Empty() bool {
	return u.Name == nil && u.Note == nil && len(u.MailboxIDs) == 0 && u.Pinned == nil
}

// RandomAliasMode 随机别名的生成方式。
type RandomAliasMode string

const (
	RandomAliasUUID RandomAliasMode = "uuid"
	RandomAliasWord RandomAliasMode = "word"
)
