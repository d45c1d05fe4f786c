package sql

import (
	"strings"

	"aliaskit/client/internal/domain"
)

// searchSeparator 拼接检索列时分隔各字段，避免跨字段匹配
const searchSeparator = "\x1f"

// aliasRecord 别名表
type aliasRecord struct {
	ID                int64                  `gorm:"primaryKey;autoIncrement:false"`
	Email             string                 `gorm:"size:255;not null;index"`
	Name              *string                `gorm:"size:255"`
	Enabled           bool                   `gorm:"not null"`
	CreationTimestamp int64                  `gorm:"not null;index"`
	BlockCount        int                    `gorm:"not null"`
	ForwardCount      int                    `gorm:"not null"`
	ReplyCount        int                    `gorm:"not null"`
	Note              *string                `gorm:"type:text"`
	PGPSupported      bool                   `gorm:"not null"`
	PGPDisabled       bool                   `gorm:"not null"`
	LatestActivity    *domain.ActivityRecord `gorm:"serializer:json;type:text"`
	Pinned            bool                   `gorm:"not null"`
	SearchText        string                 `gorm:"type:text"`
}

func (aliasRecord) TableName() string { return "alias_records" }

// mailboxRecord 别名引用到的邮箱
type mailboxRecord struct {
	ID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Email string `gorm:"size:255;not null"`
}

func (mailboxRecord) TableName() string { return "mailbox_records" }

// aliasMailboxRecord 别名与邮箱的有序关联
type aliasMailboxRecord struct {
	AliasID   int64 `gorm:"primaryKey;autoIncrement:false"`
	MailboxID int64 `gorm:"primaryKey;autoIncrement:false"`
	Position  int   `gorm:"not null"`
}

func (aliasMailboxRecord) TableName() string { return "alias_mailboxes" }

type linkedMailbox struct {
	AliasID   int64
	MailboxID int64
	Position  int
	Email     string
}

// toRecords 拆分为三张表的行。同一批次内重复的别名或邮箱以最后一次出现为准。
func toRecords(aliases []domain.Alias) ([]aliasRecord, []mailboxRecord, []aliasMailboxRecord) {
	aliasIndex := make(map[int64]int, len(aliases))
	aliasRows := make([]aliasRecord, 0, len(aliases))
	latest := make(map[int64]domain.Alias, len(aliases))
	for _, alias := range aliases {
		row := fromDomain(alias)
		if i, ok := aliasIndex[alias.ID]; ok {
			aliasRows[i] = row
		} else {
			aliasIndex[alias.ID] = len(aliasRows)
			aliasRows = append(aliasRows, row)
		}
		latest[alias.ID] = alias
	}

	mailboxIndex := make(map[int64]int)
	var mailboxRows []mailboxRecord
	var linkRows []aliasMailboxRecord
	for _, row := range aliasRows {
		seen := make(map[int64]bool)
		for position, mb := range latest[row.ID].Mailboxes {
			if i, ok := mailboxIndex[mb.ID]; ok {
				mailboxRows[i].Email = mb.Email
			} else {
				mailboxIndex[mb.ID] = len(mailboxRows)
				mailboxRows = append(mailboxRows, mailboxRecord{ID: mb.ID, Email: mb.Email})
			}
			if seen[mb.ID] {
				continue
			}
			seen[mb.ID] = true
			linkRows = append(linkRows, aliasMailboxRecord{AliasID: row.ID, MailboxID: mb.ID, Position: position})
		}
	}
	return aliasRows, mailboxRows, linkRows
}

func fromDomain(alias domain.Alias) aliasRecord {
	clone := alias.Clone()
	return aliasRecord{
		ID:                clone.ID,
		Email:             clone.Email,
		Name:              clone.Name,
		Enabled:           clone.Enabled,
		CreationTimestamp: clone.CreationTimestamp,
		BlockCount:        clone.BlockCount,
		ForwardCount:      clone.ForwardCount,
		ReplyCount:        clone.ReplyCount,
		Note:              clone.Note,
		PGPSupported:      clone.PGPSupported,
		PGPDisabled:       clone.PGPDisabled,
		LatestActivity:    clone.LatestActivity,
		Pinned:            clone.Pinned,
		SearchText:        searchText(clone.Email, clone.Note, clone.Name),
	}
}

// searchText 按 Unicode 规则转小写后拼接 email、note、name
func searchText(email string, note, name *string) string {
	parts := []string{strings.ToLower(email)}
	for _, field := range []*string{note, name} {
		if field != nil {
			parts = append(parts, strings.ToLower(*field))
		}
	}
	return strings.Join(parts, searchSeparator)
}

func (r aliasRecord) toDomain(mailboxes []domain.MailboxLite) domain.Alias {
	return domain.Alias{
		ID:                r.ID,
		Email:             r.Email,
		Name:              r.Name,
		Enabled:           r.Enabled,
		CreationTimestamp: r.CreationTimestamp,
		BlockCount:        r.BlockCount,
		ForwardCount:      r.ForwardCount,
		ReplyCount:        r.ReplyCount,
		Note:              r.Note,
		PGPSupported:      r.PGPSupported,
		PGPDisabled:       r.PGPDisabled,
		Mailboxes:         mailboxes,
		LatestActivity:    r.LatestActivity,
		Pinned:            r.Pinned,
	}
}
