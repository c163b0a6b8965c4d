package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/ChatLib/middleware/log"
	"github.com/Gopher0727/ChatLib/middleware/ratelimit"
)

// RateLimitByIP 按客户端 IP 限流，用在登录这类未认证入口。
// limiter 为 nil 时直接放行（Redis 不可用或限流被关闭）。
func RateLimitByIP(limiter ratelimit.Limiter, scope string, limit int, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	return rateLimit(limiter, limit, window, log, func(c *gin.Context) string {
		return fmt.Sprintf("%s:%s", scope, c.ClientIP())
	})
}

// RateLimitByUser 按已认证用户限流，依赖 AuthManager 先写入 user_id。
func RateLimitByUser(limiter ratelimit.Limiter, scope string, limit int, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	return rateLimit(limiter, limit, window, log, func(c *gin.Context) string {
		if userID := c.GetString("user_id"); userID != "" {
			return fmt.Sprintf("%s:%s", scope, userID)
		}
		return fmt.Sprintf("%s:%s", scope, c.ClientIP())
	})
}

func rateLimit(limiter ratelimit.Limiter, limit int, window time.Duration, log *logger.Logger, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := keyFn(c)
		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			// 计数失败时放行，限流不应拖垮正常请求
			log.WarnContext(c.Request.Context(), "限流检查失败",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"message": "请求过于频繁，请稍后再试",
					"code":    "RATE_LIMITED",
				},
			})
			return
		}
		c.Next()
	}
}
