package domain

import "strings"

// Suffix 别名后缀及其服务端签名。
//
// Signature 必须原样随创建请求发回；签名在服务端会过期，
// 因此一次选项拉取得到的 Suffix 不应在新的拉取之后继续使用。
type Suffix struct {
	Value     string `json:"suffix"`
	Signature string `json:"signed_suffix"`
	IsCustom  bool   `json:"is_custom"`
	IsPremium bool   `json:"is_premium"`
}

// AliasOptions 创建别名时可用的选项。
type AliasOptions struct {
	CanCreate        bool     `json:"can_create"`
	PrefixSuggestion string   `json:"prefix_suggestion"`
	Suffixes         []Suffix `json:"suffixes"`
}

// AliasCreationRequest 创建自定义别名的输入，不做持久化。
type AliasCreationRequest struct {
	Prefix     string
	Suffix     Suffix
	MailboxIDs []int64
	Name       *string
	Note       *string
}

// Validate 在发送请求前做客户端校验。
func (r AliasCreationRequest) Validate() error {
	if err := ValidatePrefix(r.Prefix); err != nil {
		return err
	}
	if strings.TrimSpace(r.Suffix.Value) == "" || strings.TrimSpace(r.Suffix.Signature) == "" {
		return ErrSuffixUnsigned
	}
	if len(r.MailboxIDs) == 0 {
		return ErrNoMailboxSelected
	}
	return nil
}

// Email 返回将要创建的完整别名地址（仅用于展示）。
func (r AliasCreationRequest) Email() string {
	return r.Prefix + r.Suffix.Value
}
