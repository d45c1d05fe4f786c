package domain

// Mailbox 表示接收转发邮件的真实邮箱。
type Mailbox struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	Default           bool   `json:"default"`
	CreationTimestamp int64  `json:"creation_timestamp"`
	AliasCount        int    `json:"nb_alias"`
	Verified          bool   `json:"verified"`
}

// Lite 转换为轻量引用。
func (m Mailbox) Lite() MailboxLite {
	return MailboxLite{ID: m.ID, Email: m.Email}
}
