package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"aliaskit/client/internal/domain"
)

// 列表类响应的信封，字段缺失视为响应格式错误。
type aliasesEnvelope struct {
	Aliases *[]domain.Alias `json:"aliases"`
}

type mailboxesEnvelope struct {
	Mailboxes *[]domain.Mailbox `json:"mailboxes"`
}

type activitiesEnvelope struct {
	Activities *[]domain.AliasActivity `json:"activities"`
}

type toggleResponse struct {
	Enabled *bool `json:"enabled"`
}

type mfaResponse struct {
	APIKey domain.APIKey `json:"api_key"`
}

var errMissingField = errors.New("missing field in response")

func missingField(name string) error {
	return newError(KindSerializationFailed, http.StatusOK, fmt.Errorf("%w: %s", errMissingField, name))
}

// Login 使用邮箱和密码登录。开启 MFA 时返回的 APIKey 为空。
func (c *Client) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	var result domain.LoginResult
	err := c.call(ctx, "login", false, func(ctx context.Context, _ domain.APIKey) (*http.Request, error) {
		return c.builder.Login(ctx, email, password, c.device)
	}, &result)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if !result.MFAEnabled && result.APIKey.Empty() {
		return domain.LoginResult{}, missingField("api_key")
	}
	return result, nil
}

// VerifyMFA 完成二次验证并返回 API Key。
func (c *Client) VerifyMFA(ctx context.Context, mfaKey, token string) (domain.APIKey, error) {
	var result mfaResponse
	err := c.call(ctx, "verify_mfa", false, func(ctx context.Context, _ domain.APIKey) (*http.Request, error) {
		return c.builder.VerifyMFA(ctx, mfaKey, token, c.device)
	}, &result)
	if err != nil {
		return "", err
	}
	if result.APIKey.Empty() {
		return "", missingField("api_key")
	}
	return result.APIKey, nil
}

// UserInfo 获取当前账户信息，常用于校验 API Key 是否有效。
func (c *Client) UserInfo(ctx context.Context) (domain.UserInfo, error) {
	var info domain.UserInfo
	err := c.call(ctx, "user_info", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.UserInfo(ctx, key)
	}, &info)
	return info, err
}

// CheckAPIKey 用给定的 API Key 查询账户信息，不读取也不修改已保存的凭据。
func (c *Client) CheckAPIKey(ctx context.Context, key domain.APIKey) (domain.UserInfo, error) {
	var info domain.UserInfo
	err := c.call(ctx, "user_info", false, func(ctx context.Context, _ domain.APIKey) (*http.Request, error) {
		return c.builder.UserInfo(ctx, key)
	}, &info)
	return info, err
}

// AliasOptions 获取创建别名的选项。返回的后缀签名有时效，不应跨次拉取复用。
func (c *Client) AliasOptions(ctx context.Context, hostname string) (domain.AliasOptions, error) {
	var options domain.AliasOptions
	err := c.call(ctx, "alias_options", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.AliasOptions(ctx, key, hostname)
	}, &options)
	return options, err
}

// ListAliases 获取一页别名，searchTerm 为空时不过滤。
func (c *Client) ListAliases(ctx context.Context, page int, searchTerm string) ([]domain.Alias, error) {
	var envelope aliasesEnvelope
	err := c.call(ctx, "list_aliases", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.ListAliases(ctx, key, page, searchTerm)
	}, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Aliases == nil {
		return nil, missingField("aliases")
	}
	return *envelope.Aliases, nil
}

// GetAlias 获取单个别名。
func (c *Client) GetAlias(ctx context.Context, id int64) (domain.Alias, error) {
	var alias domain.Alias
	err := c.call(ctx, "get_alias", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.GetAlias(ctx, key, id)
	}, &alias)
	return alias, err
}

// AliasActivities 获取别名的一页活动记录。
func (c *Client) AliasActivities(ctx context.Context, id int64, page int) ([]domain.AliasActivity, error) {
	var envelope activitiesEnvelope
	err := c.call(ctx, "alias_activities", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.AliasActivities(ctx, key, id, page)
	}, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Activities == nil {
		return nil, missingField("activities")
	}
	return *envelope.Activities, nil
}

// Mailboxes 获取账户下的邮箱。
func (c *Client) Mailboxes(ctx context.Context) ([]domain.Mailbox, error) {
	var envelope mailboxesEnvelope
	err := c.call(ctx, "mailboxes", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.Mailboxes(ctx, key)
	}, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Mailboxes == nil {
		return nil, missingField("mailboxes")
	}
	return *envelope.Mailboxes, nil
}

// CreateAlias 创建自定义别名。别名已存在时返回 ErrDuplicatedAlias。
func (c *Client) CreateAlias(ctx context.Context, req domain.AliasCreationRequest) (domain.Alias, error) {
	var alias domain.Alias
	err := c.call(ctx, "create_alias", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.CreateAlias(ctx, key, req)
	}, &alias)
	return alias, err
}

// CreateRandomAlias 创建随机别名。
func (c *Client) CreateRandomAlias(ctx context.Context, mode domain.RandomAliasMode, note *string, hostname string) (domain.Alias, error) {
	var alias domain.Alias
	err := c.call(ctx, "create_random_alias", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.CreateRandomAlias(ctx, key, mode, note, hostname)
	}, &alias)
	return alias, err
}

// UpdateAlias 部分更新别名。服务端不返回更新后的别名，需要时调用 GetAlias。
func (c *Client) UpdateAlias(ctx context.Context, id int64, update domain.AliasUpdate) error {
	return c.call(ctx, "update_alias", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.UpdateAlias(ctx, key, id, update)
	}, nil)
}

// ToggleAlias 切换别名启用状态，返回服务端确认后的值。
func (c *Client) ToggleAlias(ctx context.Context, id int64) (bool, error) {
	var result toggleResponse
	err := c.call(ctx, "toggle_alias", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.ToggleAlias(ctx, key, id)
	}, &result)
	if err != nil {
		return false, err
	}
	if result.Enabled == nil {
		return false, missingField("enabled")
	}
	return *result.Enabled, nil
}

// DeleteAlias 删除别名。
func (c *Client) DeleteAlias(ctx context.Context, id int64) error {
	return c.call(ctx, "delete_alias", true, func(ctx context.Context, key domain.APIKey) (*http.Request, error) {
		return c.builder.DeleteAlias(ctx, key, id)
	}, nil)
}
