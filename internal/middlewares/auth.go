package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatLib/middleware/jwt"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// SessionCookie 登录会话 cookie 名
const SessionCookie = "chat_token"

// AuthManager 认证中间件
type AuthManager struct {
	tokens *jwt.TokenManager
	log    *logger.Logger
}

func NewAuthManager(tokens *jwt.TokenManager, log *logger.Logger) *AuthManager {
	return &AuthManager{tokens: tokens, log: log}
}

// extractToken 优先取会话 cookie，回退到 Authorization 头（API 客户端使用）
func extractToken(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return ""
}

// RequirePage 页面认证：未登录跳转到登录页
func (m *AuthManager) RequirePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		m.attach(c, claims)
		c.Next()
	}
}

// RequireAPI API 认证：未登录返回 401 JSON
func (m *AuthManager) RequireAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"message": "未登录或会话已过期", "code": "UNAUTHORIZED"},
			})
			c.Abort()
			return
		}
		m.attach(c, claims)
		c.Next()
	}
}

func (m *AuthManager) authenticate(c *gin.Context) (*jwt.Claims, bool) {
	token := extractToken(c)
	if token == "" {
		return nil, false
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		m.log.WarnContext(c.Request.Context(), "会话校验失败",
			zap.Error(err), zap.String("ip", c.ClientIP()))
		return nil, false
	}

	// 临近过期的会话静默续签
	if m.tokens.ShouldRefresh(claims) {
		if refreshed, err := m.tokens.RefreshToken(token); err == nil {
			c.SetCookie(SessionCookie, refreshed, 0, "/", "", false, true)
		}
	}
	return claims, true
}

func (m *AuthManager) attach(c *gin.Context, claims *jwt.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("name", claims.Name)
}
