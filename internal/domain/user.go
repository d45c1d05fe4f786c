package domain

// UserInfo 当前 API Key 对应的账户信息。
type UserInfo struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	IsPremium         bool   `json:"is_premium"`
	InTrial           bool   `json:"in_trial"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// LoginResult 登录接口的返回。
// 开启 MFA 时 APIKey 为空，需要用 MFAKey 完成二次验证。
type LoginResult struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	APIKey     APIKey `json:"api_key"`
	MFAEnabled bool   `json:"mfa_enabled"`
	MFAKey     string `json:"mfa_key"`
}
