package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrEmailTooLong      = errors.New("email address too long")
	ErrPrefixEmpty       = errors.New("alias prefix is empty")
	ErrPrefixTooLong     = errors.New("alias prefix too long (max 100 chars)")
	ErrInvalidPrefix     = errors.New("alias prefix may only contain lowercase letters, digits, '.', '_' and '-'")
	ErrSuffixUnsigned    = errors.New("alias suffix is missing its signature")
	ErrNoMailboxSelected = errors.New("at least one mailbox must be selected")
	ErrPasswordEmpty     = errors.New("password is empty")
)

// 验证常量
const (
	// RFC 5322 邮箱地址长度限制
	MaxEmailLength = 254

	// 服务端对别名前缀的长度限制
	MaxPrefixLength = 100
)

// 别名前缀只允许小写字母、数字以及 . _ -
var prefixRegex = regexp.MustCompile(`^[a-z0-9._-]+$`)

// ValidatePrefix 校验自定义别名前缀。
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return ErrPrefixEmpty
	}
	if len(prefix) > MaxPrefixLength {
		return ErrPrefixTooLong
	}
	if !prefixRegex.MatchString(prefix) {
		return ErrInvalidPrefix
	}
	return nil
}

// ValidateEmail 校验登录邮箱格式。
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidEmail
	}
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || !strings.Contains(parts[1], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateCredentials 校验登录输入。
func ValidateCredentials(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordEmpty
	}
	return nil
}
