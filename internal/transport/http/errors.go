package httptransport

import (
	"errors"
	"fmt"
	"net/http"

	"aliaskit/client/internal/apiclient"
	"aliaskit/client/internal/auth"
	"aliaskit/client/internal/credential"
	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/repository"
	"aliaskit/client/internal/storage"
)

// errorMapping 业务错误对应的 HTTP 状态码与中文消息
type errorMapping struct {
	status int
	msg    string
}

// 服务端调用失败的类别 -> 中文消息，每个类别一条
var kindMessages = map[apiclient.Kind]errorMapping{
	apiclient.KindBadURLString:              {http.StatusInternalServerError, "服务地址配置错误"},
	apiclient.KindNoData:                    {http.StatusBadGateway, "服务端未返回数据"},
	apiclient.KindUnknownResponseStatusCode: {http.StatusBadGateway, "无法识别服务端响应"},
	apiclient.KindInvalidAPIKey:             {http.StatusUnauthorized, "API Key 无效或已失效，请重新登录"},
	apiclient.KindDuplicatedAlias:           {http.StatusConflict, "该别名已存在，请更换前缀"},
	apiclient.KindInternalServerError:       {http.StatusBadGateway, "别名服务内部错误，请稍后重试"},
	apiclient.KindBadGateway:                {http.StatusBadGateway, "别名服务网关错误，请稍后重试"},
	apiclient.KindUnknownStatusCode:         {http.StatusBadGateway, "别名服务返回了未知错误"},
	apiclient.KindSerializationFailed:       {http.StatusBadGateway, "服务端响应格式无法解析"},
	apiclient.KindNetwork:                   {http.StatusServiceUnavailable, "无法连接别名服务，请检查网络"},
	apiclient.KindMissingAPIKey:             {http.StatusUnauthorized, "尚未登录，请先登录"},
}

// 错误消息映射表（本地错误 -> 中文消息）
var errorMessages = []struct {
	err error
	errorMapping
}{
	{domain.ErrInvalidEmail, errorMapping{http.StatusBadRequest, "邮箱格式无效"}},
	{domain.ErrEmailTooLong, errorMapping{http.StatusBadRequest, "邮箱地址过长"}},
	{domain.ErrPrefixEmpty, errorMapping{http.StatusBadRequest, "别名前缀不能为空"}},
	{domain.ErrPrefixTooLong, errorMapping{http.StatusBadRequest, "别名前缀不能超过 100 个字符"}},
	{domain.ErrInvalidPrefix, errorMapping{http.StatusBadRequest, "别名前缀只能包含小写字母、数字、点、下划线和连字符"}},
	{domain.ErrSuffixUnsigned, errorMapping{http.StatusBadRequest, "请选择有效的别名后缀"}},
	{domain.ErrNoMailboxSelected, errorMapping{http.StatusBadRequest, "至少选择一个邮箱"}},
	{domain.ErrPasswordEmpty, errorMapping{http.StatusBadRequest, "密码不能为空"}},
	{repository.ErrEmptyUpdate, errorMapping{http.StatusBadRequest, "没有需要更新的字段"}},
	{auth.ErrMFATokenEmpty, errorMapping{http.StatusBadRequest, "MFA 验证码不能为空"}},
	{auth.ErrNotLoggedIn, errorMapping{http.StatusUnauthorized, "尚未登录，请先登录"}},
	{credential.ErrNoAPIKey, errorMapping{http.StatusUnauthorized, "尚未登录，请先登录"}},
	{credential.ErrSealedValueInvalid, errorMapping{http.StatusInternalServerError, "本地凭据无法解密，请重新登录"}},
	{storage.ErrAliasNotFound, errorMapping{http.StatusNotFound, MsgAliasNotFound}},
}

// GetErrorMessage 获取错误对应的 HTTP 状态码与中文消息
func GetErrorMessage(err error) (int, string) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if m, ok := kindMessages[apiErr.Kind]; ok {
			if apiErr.Kind == apiclient.KindUnknownStatusCode && apiErr.StatusCode != 0 {
				return m.status, fmt.Sprintf("%s（%d）", m.msg, apiErr.StatusCode)
			}
			return m.status, m.msg
		}
	}

	for _, entry := range errorMessages {
		if errors.Is(err, entry.err) {
			return entry.status, entry.msg
		}
	}
	return http.StatusInternalServerError, MsgInternalError
}

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidAliasID = "别名 ID 无效"
	MsgInvalidPage    = "页码无效"
	MsgInternalError  = "服务器内部错误"

	MsgAliasNotFound = "别名不存在"
	MsgLoggedOut     = "已退出登录"
	MsgMFARequired   = "需要 MFA 二次验证"
)
