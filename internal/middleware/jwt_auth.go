package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aliaskit/client/internal/auth/jwt"
	"aliaskit/client/internal/logger"
)

// SessionIDKey 上下文中保存会话 ID 的键
const SessionIDKey = "sessionID"

// SessionCookie 保存会话令牌的 cookie 名
const SessionCookie = "aliaskit_session"

// JWTAuth JWT认证中间件
type JWTAuth struct {
	jwtManager *jwt.Manager
	log        *zap.Logger
}

// NewJWTAuth 创建JWT认证中间件
func NewJWTAuth(jwtManager *jwt.Manager, log *zap.Logger) *JWTAuth {
	return &JWTAuth{
		jwtManager: jwtManager,
		log:        logger.OrNop(log),
	}
}

// RequireAuth 要求JWT认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		claims, err := ja.jwtManager.Validate(token)
		if err != nil {
			ja.log.Warn("invalid session token",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(SessionIDKey, claims.SessionID)
		c.Next()
	}
}

// extractToken 从请求中提取JWT token
//
// 浏览器无法为 WebSocket 握手设置请求头，因此也接受 token 查询参数。
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}

	return c.Query("token")
}
