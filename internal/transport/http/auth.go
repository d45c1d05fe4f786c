package httptransport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aliaskit/client/internal/auth"
	"aliaskit/client/internal/domain"
	"aliaskit/client/internal/logger"
	"aliaskit/client/internal/middleware"
)

// AccountHandler 处理账户登录、登出与会话相关的请求
type AccountHandler struct {
	authService *auth.Service // 账户会话服务
	sessionTTL  time.Duration // 会话 cookie 的有效期
	log         *zap.Logger   // 结构化日志记录器
}

// NewAccountHandler 创建账户处理器
//
// 参数:
//   - authService: 账户会话服务
//   - sessionTTL: 会话 cookie 有效期，应与令牌有效期一致
//   - log: 日志记录器，可为 nil
//
// 返回值:
//   - *AccountHandler: 账户处理器实例
func NewAccountHandler(authService *auth.Service, sessionTTL time.Duration, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		authService: authService,
		sessionTTL:  sessionTTL,
		log:         logger.OrNop(log).Named("account_handler"),
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type mfaRequest struct {
	MFAKey string `json:"mfa_key" binding:"required"`
	Token  string `json:"token"`
}

type apiKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

type loginResponse struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	MFAEnabled bool   `json:"mfa_enabled"`
	MFAKey     string `json:"mfa_key,omitempty"`
}

// Login 使用邮箱和密码登录
//
// 账户开启 MFA 时返回 mfa_key，需要再调用 VerifyMFA。API Key 不会返回给 UI。
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if result.MFAEnabled {
		SuccessWithMsg(c, MsgMFARequired, loginResponse{MFAEnabled: true, MFAKey: result.MFAKey})
		return
	}
	Success(c, loginResponse{Name: result.Name, Email: result.Email})
}

// VerifyMFA 完成 MFA 二次验证
func (h *AccountHandler) VerifyMFA(c *gin.Context) {
	var req mfaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.VerifyMFA(c.Request.Context(), req.MFAKey, req.Token); err != nil {
		h.respondError(c, err)
		return
	}
	h.Me(c)
}

// UseAPIKey 直接使用已有的 API Key 登录
func (h *AccountHandler) UseAPIKey(c *gin.Context) {
	var req apiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	info, err := h.authService.UseAPIKey(c.Request.Context(), domain.APIKey(req.APIKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, info)
}

// Me 返回当前账户信息
func (h *AccountHandler) Me(c *gin.Context) {
	info, err := h.authService.WhoAmI(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, info)
}

// Logout 清除凭据和本地缓存
func (h *AccountHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	SuccessWithMsg(c, MsgLoggedOut, nil)
}

// StartSession 把查询参数中的会话令牌写入 cookie
//
// 令牌已由前置中间件校验；之后浏览器请求无需再携带 token 参数。
func (h *AccountHandler) StartSession(c *gin.Context) {
	if token := c.Query("token"); token != "" {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(middleware.SessionCookie, token, int(h.sessionTTL.Seconds()), "/", "", false, true)
	}
	Success(c, gin.H{"session_id": c.GetString(middleware.SessionIDKey)})
}

func (h *AccountHandler) respondError(c *gin.Context, err error) {
	status, msg := GetErrorMessage(err)
	if status >= 500 {
		h.log.Error("account operation failed", zap.Error(err))
	}
	Error(c, status, msg)
}
