package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/ChatLib/middleware/log"
	"github.com/Gopher0727/ChatLib/internal/models"
)

const (
	statusKeyPrefix = "chat:status:"
	unreadKeyPrefix = "chat:unread:"
)

// Client Redis 缓存封装：用户在线状态 + 未读摘要。
// 缓存只是旁路加速，任何 Redis 错误都只记日志、不影响调用方。
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewClient(rdb *redis.Client, log *logger.Logger) *Client {
	return &Client{rdb: rdb, log: log}
}

// SetStatus 记录用户在线状态
func (c *Client) SetStatus(ctx context.Context, userID, status string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, statusKeyPrefix+userID, status, 0).Err(); err != nil {
		c.log.WarnContext(ctx, "写入状态缓存失败", zap.String("user_id", userID), zap.Error(err))
	}
}

// GetStatus 读取用户在线状态，miss 时第二个返回值为 false
func (c *Client) GetStatus(ctx context.Context, userID string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	status, err := c.rdb.Get(ctx, statusKeyPrefix+userID).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "读取状态缓存失败", zap.String("user_id", userID), zap.Error(err))
		}
		return "", false
	}
	return status, true
}

// SetUnread 缓存用户的未读摘要，TTL 过期后回源聚合
func (c *Client) SetUnread(ctx context.Context, userID string, chats []models.UnreadChat, ttl time.Duration) {
	if c == nil || c.rdb == nil || ttl <= 0 {
		return
	}
	payload, err := json.Marshal(chats)
	if err != nil {
		c.log.WarnContext(ctx, "序列化未读摘要失败", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, unreadKeyPrefix+userID, payload, ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "写入未读缓存失败", zap.String("user_id", userID), zap.Error(err))
	}
}

// GetUnread 读取未读摘要缓存
func (c *Client) GetUnread(ctx context.Context, userID string) ([]models.UnreadChat, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	payload, err := c.rdb.Get(ctx, unreadKeyPrefix+userID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "读取未读缓存失败", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, false
	}
	var chats []models.UnreadChat
	if err := json.Unmarshal(payload, &chats); err != nil {
		c.log.WarnContext(ctx, "解析未读缓存失败", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	return chats, true
}

// InvalidateUnread 失效用户的未读摘要，发消息与标记已读后调用
func (c *Client) InvalidateUnread(ctx context.Context, userIDs ...string) {
	if c == nil || c.rdb == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, unreadKeyPrefix+id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.WarnContext(ctx, "失效未读缓存失败", zap.Error(err))
	}
}
