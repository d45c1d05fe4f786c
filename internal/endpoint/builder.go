// Package endpoint 把类型化的操作描述映射为完整的 HTTP 请求。
//
// 这里只构造请求，不发起任何网络调用。
package endpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"aliaskit/client/internal/domain"
)

// AuthHeader 携带 API Key 的请求头名称，与服务端保持一致。
const AuthHeader = "Authentication"

var (
	// ErrBadURLString 基础地址或拼接后的地址格式错误
	ErrBadURLString = errors.New("bad URL string")
	// ErrMissingAPIKey 需要认证的接口没有提供 API Key
	ErrMissingAPIKey = errors.New("missing API key")
)

// 接口路径
const (
	PathLogin        = "/api/auth/login"
	PathMFA          = "/api/auth/mfa"
	PathUserInfo     = "/api/user_info"
	PathAliasOptions = "/api/v2/alias/options"
	PathAliases      = "/api/v2/aliases"
	PathMailboxes    = "/api/mailboxes"
	PathCreateAlias  = "/api/v3/alias/custom/new"
	PathRandomAlias  = "/api/alias/random/new"
)

// Builder 基于固定的基础地址构造请求。
type Builder struct {
	base *url.URL
}

// NewBuilder 解析基础地址。地址格式错误在构造时返回 ErrBadURLString。
func NewBuilder(baseURL string) (*Builder, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty base URL", ErrBadURLString)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURLString, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrBadURLString, baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return &Builder{base: u}, nil
}

// BaseURL 返回规范化后的基础地址。
func (b *Builder) BaseURL() string {
	return b.base.String()
}

// Login 登录，不需要认证头。
func (b *Builder) Login(ctx context.Context, email, password, device string) (*http.Request, error) {
	body := bodyFields{
		{key: "email", value: email, present: true},
		{key: "password", value: password, present: true},
		{key: "device", value: device, present: true},
	}
	return b.build(ctx, http.MethodPost, PathLogin, nil, "", body)
}

// VerifyMFA 使用登录返回的 mfa_key 与一次性口令完成二次验证。
func (b *Builder) VerifyMFA(ctx context.Context, mfaKey, token, device string) (*http.Request, error) {
	body := bodyFields{
		{key: "mfa_token", value: token, present: true},
		{key: "mfa_key", value: mfaKey, present: true},
		{key: "device", value: device, present: true},
	}
	return b.build(ctx, http.MethodPost, PathMFA, nil, "", body)
}

// UserInfo 获取账户信息。
func (b *Builder) UserInfo(ctx context.Context, key domain.APIKey) (*http.Request, error) {
	return b.authed(ctx, key, http.MethodGet, PathUserInfo, nil, nil)
}

// AliasOptions 获取创建别名的选项，hostname 为空时不带该参数。
func (b *Builder) AliasOptions(ctx context.Context, key domain.APIKey, hostname string) (*http.Request, error) {
	query := url.Values{}
	if h := strings.TrimSpace(hostname); h != "" {
		query.Set("hostname", h)
	}
	return b.authed(ctx, key, http.MethodGet, PathAliasOptions, query, nil)
}

// ListAliases 分页列出别名。带搜索词时改用 POST 并在请求体中携带 query。
func (b *Builder) ListAliases(ctx context.Context, key domain.APIKey, page int, searchTerm string) (*http.Request, error) {
	query := pageQuery(page)
	term := strings.TrimSpace(searchTerm)
	if term == "" {
		return b.authed(ctx, key, http.MethodGet, PathAliases, query, nil)
	}
	body := bodyFields{{key: "query", value: term, present: true}}
	return b.authed(ctx, key, http.MethodPost, PathAliases, query, body)
}

// GetAlias 获取单个别名。
func (b *Builder) GetAlias(ctx context.Context, key domain.APIKey, id int64) (*http.Request, error) {
	return b.authed(ctx, key, http.MethodGet, aliasPath(id, ""), nil, nil)
}

// AliasActivities 分页获取别名活动。
func (b *Builder) AliasActivities(ctx context.Context, key domain.APIKey, id int64, page int) (*http.Request, error) {
	return b.authed(ctx, key, http.MethodGet, aliasPath(id, "/activities"), pageQuery(page), nil)
}

// Mailboxes 获取邮箱列表。
func (b *Builder) Mailboxes(ctx context.Context, key domain.APIKey) (*http.Request, error) {
	return b.authed(ctx, key, http.MethodGet, PathMailboxes, nil, nil)
}

// CreateAlias 使用签名后缀创建自定义别名。name、note 缺省时不出现在请求体中。
func (b *Builder) CreateAlias(ctx context.Context, key domain.APIKey, req domain.AliasCreationRequest) (*http.Request, error) {
	body := bodyFields{
		{key: "alias_prefix", value: req.Prefix, present: true},
		{key: "signed_suffix", value: req.Suffix.Signature, present: true},
		{key: "mailbox_ids", value: req.MailboxIDs, present: true},
		optionalString("name", req.Name),
		optionalString("note", req.Note),
	}
	return b.authed(ctx, key, http.MethodPost, PathCreateAlias, nil, body)
}

// CreateRandomAlias 创建随机别名。
func (b *Builder) CreateRandomAlias(ctx context.Context, key domain.APIKey, mode domain.RandomAliasMode, note *string, hostname string) (*http.Request, error) {
	query := url.Values{}
	if mode != "" {
		query.Set("mode", string(mode))
	}
	if h := strings.TrimSpace(hostname); h != "" {
		query.Set("hostname", h)
	}
	body := bodyFields{optionalString("note", note)}
	return b.authed(ctx, key, http.MethodPost, PathRandomAlias, query, body)
}

// UpdateAlias 部分更新别名，只发送 update 中出现的字段。
func (b *Builder) UpdateAlias(ctx context.Context, key domain.APIKey, id int64, update domain.AliasUpdate) (*http.Request, error) {
	body := bodyFields{
		optionalString("name", update.Name),
		optionalString("note", update.Note),
		{key: "mailbox_ids", value: update.MailboxIDs, present: len(update.MailboxIDs) > 0},
	}
	if update.Pinned != nil {
		body = append(body, bodyField{key: "pinned", value: *update.Pinned, present: true})
	}
	return b.authed(ctx, key, http.MethodPatch, aliasPath(id, ""), nil, body)
}

// ToggleAlias 切换别名启用状态，服务端返回切换后的值。
func (b *Builder) ToggleAlias(ctx context.Context, key domain.APIKey, id int64) (*http.Request, error) {
	return b.authed(ctx, key, http.MethodPost, aliasPath(id, "/toggle"), nil, nil)
}

// DeleteAlias 删除别名。
func (b *Builder) DeleteAlias(ctx context.Context, key domain.APIKey, id int64) (*http.Request, error) {
	return b.authed(ctx, key, http.MethodDelete, aliasPath(id, ""), nil, nil)
}

func (b *Builder) authed(ctx context.Context, key domain.APIKey, method, path string, query url.Values, body bodyFields) (*http.Request, error) {
	if key.Empty() {
		return nil, ErrMissingAPIKey
	}
	return b.build(ctx, method, path, query, key, body)
}

func (b *Builder) build(ctx context.Context, method, path string, query url.Values, key domain.APIKey, body bodyFields) (*http.Request, error) {
	u := *b.base
	u.Path = b.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := body.encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURLString, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(AuthHeader, key.String())
	}
	return req, nil
}

func pageQuery(page int) url.Values {
	if page < 0 {
		page = 0
	}
	query := url.Values{}
	query.Set("page_id", strconv.Itoa(page))
	return query
}

func aliasPath(id int64, suffix string) string {
	return "/api/aliases/" + strconv.FormatInt(id, 10) + suffix
}
