package chatlib

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatLib/config"
	"github.com/Gopher0727/ChatLib/internal/cache"
	"github.com/Gopher0727/ChatLib/internal/errs"
	"github.com/Gopher0727/ChatLib/internal/models"
	"github.com/Gopher0727/ChatLib/internal/repositories"
	"github.com/Gopher0727/ChatLib/internal/storage"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// 错误信封中的 source 标识
const (
	srcLibrary  = "Library"
	srcUsers    = "UserDirectory"
	srcChats    = "ChatRegistry"
	srcMessages = "MessageStore"
)

// Library 聊天库门面：统一持有连接生命周期，web 层与 CLI 以完全相同的方式调用。
// Connect/Disconnect 幂等，其余操作在执行前自动补连接。
type Library struct {
	mu        sync.Mutex
	connected bool

	cfg *config.Config
	log *logger.Logger

	mongo *storage.Mongo
	rdb   *redis.Client

	users    UserStore
	chats    ChatStore
	messages MessageStore
	cache    UnreadCache

	unreadTTL time.Duration
}

// New 创建未连接的门面实例，首次操作时自动连接
func New(cfg *config.Config, log *logger.Logger) *Library {
	return &Library{
		cfg:       cfg,
		log:       log,
		unreadTTL: time.Duration(cfg.Cache.UnreadTTLSeconds) * time.Second,
	}
}

// NewWithStores 以注入的存储实现创建门面，视为已连接。测试与嵌入场景使用
func NewWithStores(log *logger.Logger, users UserStore, chats ChatStore, messages MessageStore, unreadCache UnreadCache) *Library {
	return &Library{
		connected: true,
		log:       log,
		users:     users,
		chats:     chats,
		messages:  messages,
		cache:     unreadCache,
		unreadTTL: 10 * time.Second,
	}
}

// Connect 建立数据库连接，重复调用是空操作
func (l *Library) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectLocked(ctx)
}

func (l *Library) connectLocked(ctx context.Context) error {
	if l.connected {
		l.log.InfoContext(ctx, "已连接数据库, 跳过重复连接")
		return nil
	}

	m, err := storage.InitMongo(ctx, &l.cfg.Mongo)
	if err != nil {
		return err
	}
	l.mongo = m
	l.users = repositories.NewUserRepository(m.Database)
	l.chats = repositories.NewChatRepository(m.Database)
	l.messages = repositories.NewMessageRepository(m.Database)

	// Redis 不可用时未读查询直接回源，不阻塞启动
	rdb, err := storage.InitRedis(ctx, &l.cfg.Redis)
	if err != nil {
		l.log.WarnContext(ctx, "Redis 不可用, 未读缓存降级为直查", zap.Error(err))
	} else {
		l.rdb = rdb
		l.cache = cache.NewClient(rdb, l.log)
	}

	l.connected = true
	l.log.InfoContext(ctx, "聊天库初始化完成")
	return nil
}

// Redis 返回底层 Redis 客户端，未连接或 Redis 降级时为 nil。
// 限流等外围组件复用这条连接。
func (l *Library) Redis() *redis.Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rdb
}

// Disconnect 断开数据库连接，重复调用是空操作
func (l *Library) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		l.log.InfoContext(ctx, "未连接数据库, 无需断开")
		return nil
	}

	if l.rdb != nil {
		if err := l.rdb.Close(); err != nil {
			l.log.WarnContext(ctx, "关闭 Redis 连接失败", zap.Error(err))
		}
		l.rdb = nil
		l.cache = nil
	}

	if l.mongo != nil {
		if err := l.mongo.Close(ctx); err != nil {
			return err
		}
		l.mongo = nil
	}

	l.connected = false
	l.log.InfoContext(ctx, "已断开数据库连接")
	return nil
}

// ensureConnection 操作前置检查：未连接则连接
func (l *Library) ensureConnection(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		return nil
	}
	return l.connectLocked(ctx)
}

// fail 把错误归一化为信封，并记录一条错误日志（仅副作用，不影响控制流）
func (l *Library) fail(ctx context.Context, err error, source string) *errs.ErrorInfo {
	info := errs.From(err, source)
	l.log.ErrorContext(ctx, "操作失败",
		zap.String("source", source),
		zap.String("code", info.Code),
		zap.String("message", info.Message),
	)
	return info
}

func parseChatID(id string) (primitive.ObjectID, *errs.Error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.Newf(errs.CodeChatNotFound, "聊天 '%s' 不存在", id)
	}
	return oid, nil
}

func parseUserID(id string) (primitive.ObjectID, *errs.Error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.Newf(errs.CodeUserNotFound, "用户 '%s' 不存在", id)
	}
	return oid, nil
}

func parseMessageID(id string) (primitive.ObjectID, *errs.Error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.Newf(errs.CodeMessageNotFound, "消息 '%s' 不存在", id)
	}
	return oid, nil
}

// resolveChat 把聊天文档解析为参与者/管理员带公开信息的视图
func (l *Library) resolveChat(ctx context.Context, chat *models.Chat) (*models.ChatDetail, error) {
	participants, err := l.users.GetPublicByIDs(ctx, chat.Participants)
	if err != nil {
		return nil, err
	}
	admins, err := l.users.GetPublicByIDs(ctx, chat.Admins)
	if err != nil {
		return nil, err
	}
	return &models.ChatDetail{
		ID:           chat.ID,
		Name:         chat.Name,
		IsGroup:      chat.IsGroup,
		Participants: participants,
		Admins:       admins,
		LastActivity: chat.LastActivity,
		Metadata:     chat.Metadata,
		CreatedAt:    chat.CreatedAt,
		UpdatedAt:    chat.UpdatedAt,
	}, nil
}

// resolveChats 批量解析，所有聊天的用户只查一次库
func (l *Library) resolveChats(ctx context.Context, chats []models.Chat) ([]models.ChatDetail, error) {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, c := range chats {
		for _, p := range c.Participants {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				ids = append(ids, p)
			}
		}
	}

	resolved, err := l.users.GetPublicByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.UserPublic, len(resolved))
	for _, u := range resolved {
		byID[u.ID] = u
	}

	pick := func(ids []primitive.ObjectID) []models.UserPublic {
		out := make([]models.UserPublic, 0, len(ids))
		for _, id := range ids {
			if u, ok := byID[id]; ok {
				out = append(out, u)
			}
		}
		return out
	}

	details := make([]models.ChatDetail, 0, len(chats))
	for _, c := range chats {
		details = append(details, models.ChatDetail{
			ID:           c.ID,
			Name:         c.Name,
			IsGroup:      c.IsGroup,
			Participants: pick(c.Participants),
			Admins:       pick(c.Admins),
			LastActivity: c.LastActivity,
			Metadata:     c.Metadata,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return details, nil
}
