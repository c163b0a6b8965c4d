package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatLib/config"
	"github.com/Gopher0727/ChatLib/internal/chatlib"
	"github.com/Gopher0727/ChatLib/internal/routers"
	"github.com/Gopher0727/ChatLib/internal/utils"
	"github.com/Gopher0727/ChatLib/middleware/jwt"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
	"github.com/Gopher0727/ChatLib/middleware/ratelimit"
)

func main() {
	configPath := flag.String("config", "./config.toml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	appLog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 聊天库门面: 所有数据访问都经过它
	lib := chatlib.New(cfg, appLog)
	if err := lib.Connect(ctx); err != nil {
		appLog.Fatal("聊天库连接失败", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := lib.Disconnect(shutdownCtx); err != nil {
			appLog.Error("断开数据库连接失败", zap.Error(err))
		}
	}()

	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)

	// 写接口的协程池, 控制并发处理数量
	pool := utils.NewWorkerPool(cfg.Workers.Size, cfg.Workers.QueueSize, appLog)
	pool.Start()
	defer pool.Stop()

	// 限流计数器复用门面的 Redis 连接, Redis 降级时不限流
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if rdb := lib.Redis(); rdb != nil {
			limiter = ratelimit.NewTokenBucketLimiter(rdb, appLog.Logger, true)
		} else {
			appLog.Warn("Redis 不可用, 限流关闭")
		}
	}

	r := routers.Setup(cfg, lib, tokens, pool, limiter, appLog)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: r,
	}

	go func() {
		appLog.Info("服务器启动", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("启动服务器失败", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLog.Info("收到退出信号, 开始关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("关闭服务器失败", zap.Error(err))
	}
}
