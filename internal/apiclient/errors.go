package apiclient

import (
	"errors"
	"fmt"
)

// Kind 调用失败的类别，每个类别对应唯一的错误信息。
type Kind int

const (
	KindUnknown Kind = iota
	// KindBadURLString 请求地址无法构造
	KindBadURLString
	// KindNoData 成功响应但没有响应体
	KindNoData
	// KindUnknownResponseStatusCode 没有拿到可用的状态码
	KindUnknownResponseStatusCode
	// KindInvalidAPIKey 401
	KindInvalidAPIKey
	// KindDuplicatedAlias 409
	KindDuplicatedAlias
	// KindInternalServerError 500
	KindInternalServerError
	// KindBadGateway 502
	KindBadGateway
	// KindUnknownStatusCode 其它非 2xx 状态码
	KindUnknownStatusCode
	// KindSerializationFailed 响应体无法解析为预期结构
	KindSerializationFailed
	// KindNetwork 传输层失败（连接被拒绝、超时、取消）
	KindNetwork
	// KindMissingAPIKey 本地没有可用的 API Key
	KindMissingAPIKey
)

var kindNames = map[Kind]string{
	KindUnknown:                   "unknown",
	KindBadURLString:              "bad_url_string",
	KindNoData:                    "no_data",
	KindUnknownResponseStatusCode: "unknown_response_status_code",
	KindInvalidAPIKey:             "invalid_api_key",
	KindDuplicatedAlias:           "duplicated_alias",
	KindInternalServerError:       "internal_server_error",
	KindBadGateway:                "bad_gateway",
	KindUnknownStatusCode:         "unknown_status_code",
	KindSerializationFailed:       "serialization_failed",
	KindNetwork:                   "network",
	KindMissingAPIKey:             "missing_api_key",
}

// String 返回用于日志和指标标签的稳定名称。
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// 按类别匹配的哨兵错误，配合 errors.Is 使用。
var (
	ErrBadURLString              = &APIError{Kind: KindBadURLString}
	ErrNoData                    = &APIError{Kind: KindNoData}
	ErrUnknownResponseStatusCode = &APIError{Kind: KindUnknownResponseStatusCode}
	ErrInvalidAPIKey             = &APIError{Kind: KindInvalidAPIKey}
	ErrDuplicatedAlias           = &APIError{Kind: KindDuplicatedAlias}
	ErrInternalServerError       = &APIError{Kind: KindInternalServerError}
	ErrBadGateway                = &APIError{Kind: KindBadGateway}
	ErrUnknownStatusCode         = &APIError{Kind: KindUnknownStatusCode}
	ErrSerializationFailed       = &APIError{Kind: KindSerializationFailed}
	ErrNetwork                   = &APIError{Kind: KindNetwork}
	ErrMissingAPIKey             = &APIError{Kind: KindMissingAPIKey}
)

// APIError 服务端调用失败。
type APIError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	var msg string
	switch e.Kind {
	case KindBadURLString:
		msg = "bad URL string"
	case KindNoData:
		msg = "server returned no data"
	case KindUnknownResponseStatusCode:
		msg = "unknown response status code"
	case KindInvalidAPIKey:
		msg = "invalid API key"
	case KindDuplicatedAlias:
		msg = "duplicated alias"
	case KindInternalServerError:
		msg = "internal server error"
	case KindBadGateway:
		msg = "bad gateway"
	case KindUnknownStatusCode:
		msg = fmt.Sprintf("unknown error code %d", e.StatusCode)
	case KindSerializationFailed:
		msg = "failed to parse server response"
	case KindNetwork:
		msg = "network error"
	case KindMissingAPIKey:
		msg = "no API key, please log in"
	default:
		msg = "unknown API error"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is 按类别匹配，忽略状态码与底层错误。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf 提取错误的类别，非 APIError 返回 KindUnknown。
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// StatusCodeOf 提取错误携带的 HTTP 状态码，没有时返回 0。
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func newError(kind Kind, status int, err error) *APIError {
	return &APIError{Kind: kind, StatusCode: status, Err: err}
}

// statusError 将非 2xx 状态码映射为错误。
func statusError(status int) *APIError {
	switch status {
	case 401:
		return newError(KindInvalidAPIKey, status, nil)
	case 409:
		return newError(KindDuplicatedAlias, status, nil)
	case 500:
		return newError(KindInternalServerError, status, nil)
	case 502:
		return newError(KindBadGateway, status, nil)
	default:
		return newError(KindUnknownStatusCode, status, nil)
	}
}
