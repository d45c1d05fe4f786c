package domain

import "strings"

// APIKey 不透明的 API 密钥，由凭据提供者保存。
type APIKey string

// String 返回原始值。
func (k APIKey) String() string {
	return string(k)
}

// Empty 报告密钥是否为空白。
func (k APIKey) Empty() bool {
	return strings.TrimSpace(string(k)) == ""
}

// Masked 返回用于日志的脱敏形式，只保留前 4 位。
func (k APIKey) Masked() string {
	if len(k) <= 4 {
		return "****"
	}
	return string(k[:4]) + "****"
}
