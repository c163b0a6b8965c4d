package routers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ChatLib/config"
	"github.com/Gopher0727/ChatLib/internal/handlers"
	"github.com/Gopher0727/ChatLib/internal/middlewares"
	"github.com/Gopher0727/ChatLib/internal/utils"
	"github.com/Gopher0727/ChatLib/middleware/jwt"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
	"github.com/Gopher0727/ChatLib/middleware/ratelimit"
)

// Setup 组装 gin 引擎：模板、静态资源、中间件与全部路由
func Setup(
	cfg *config.Config,
	lib handlers.ChatLibrary,
	tokens *jwt.TokenManager,
	pool *utils.WorkerPool,
	limiter ratelimit.Limiter,
	log *logger.Logger,
) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.Trace())
	r.Use(middlewares.RequestLog(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middlewares.TraceHeader}
	r.Use(cors.New(corsCfg))

	r.LoadHTMLGlob("web/templates/*.html")
	r.Static("/static", "./web/static")

	auth := middlewares.NewAuthManager(tokens, log)
	authHandler := handlers.NewAuthHandler(lib, tokens, log)
	userHandler := handlers.NewUserHandler(lib, log)
	chatHandler := handlers.NewChatHandler(lib, log)
	messageHandler := handlers.NewMessageHandler(lib, log)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	loginLimit := middlewares.RateLimitByIP(limiter, "login", cfg.RateLimit.LoginPerMinute, time.Minute, log)

	// 公开页面
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/chats") })
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", loginLimit, authHandler.Login)
	r.GET("/register", authHandler.ShowRegister)
	r.POST("/register", loginLimit, authHandler.Register)

	// 登录后的页面, 未登录跳转到 /login
	pages := r.Group("/")
	pages.Use(auth.RequirePage())
	{
		pages.GET("/chats", chatHandler.ListChats)
		pages.GET("/chats/:id", chatHandler.ViewChat)
		pages.GET("/users", userHandler.ListUsers)
		pages.GET("/profile", userHandler.Profile)
		pages.GET("/logout", authHandler.Logout)
	}

	// JSON API, 未登录返回 401
	api := r.Group("/api")
	api.Use(auth.RequireAPI())
	{
		api.GET("/users", userHandler.ListUsersJSON)
		api.GET("/users/search", userHandler.Search)
		api.PATCH("/users/me/status", userHandler.UpdateStatus)
		api.DELETE("/users/me", userHandler.DeleteAccount)

		api.GET("/chats", func(c *gin.Context) {
			res := lib.FindChatsByUser(c.Request.Context(), c.GetString("user_id"))
			if !res.Success {
				c.JSON(http.StatusInternalServerError, res)
				return
			}
			c.JSON(http.StatusOK, res)
		})
		api.DELETE("/chats/:id", chatHandler.DeleteChat)
		api.POST("/chats/:id/participants", chatHandler.AddParticipants)
		api.DELETE("/chats/:id/participants/:participantId", chatHandler.RemoveParticipant)

		api.GET("/chats/:id/messages", messageHandler.ListByChat)
		api.POST("/chats/:id/read", messageHandler.MarkRead)
		api.GET("/messages/unread", messageHandler.Unread)
		api.DELETE("/messages/:messageId", messageHandler.Delete)

		// 写密集型接口先限流, 再走协程池排队控制并发
		writes := api.Group("/")
		writes.Use(middlewares.RateLimitByUser(limiter, "write", cfg.RateLimit.WritePerMinute, time.Minute, log))
		writes.Use(middlewares.Async(pool))
		{
			writes.POST("/chats", chatHandler.CreateChat)
			writes.POST("/chats/:id/messages", messageHandler.Send)
		}
	}

	return r
}
