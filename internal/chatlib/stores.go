package chatlib

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Gopher0727/ChatLib/internal/models"
	"github.com/Gopher0727/ChatLib/internal/repositories"
)

// UserStore 用户存储依赖
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	GetPublicByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.UserPublic, error)
}

// ChatStore 聊天存储依赖
type ChatStore interface {
	Insert(ctx context.Context, chat *models.Chat) error
	FindPair(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
	GetByIDForUser(ctx context.Context, id, userID primitive.ObjectID) (*models.Chat, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error)
	AddParticipants(ctx context.Context, id primitive.ObjectID, participantIDs []primitive.ObjectID) (*models.Chat, error)
	PullParticipant(ctx context.Context, id, participantID primitive.ObjectID) (*models.Chat, error)
	TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// MessageStore 消息存储依赖
type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	FindByChat(ctx context.Context, chatID primitive.ObjectID, opts repositories.MessageFindOptions) ([]models.Message, int64, error)
	MarkRead(ctx context.Context, chatID, userID primitive.ObjectID) (int64, error)
	UnreadByUser(ctx context.Context, userID primitive.ObjectID) ([]models.UnreadChat, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// UnreadCache 旁路缓存依赖，实现必须把缓存故障当作 miss 处理
type UnreadCache interface {
	SetStatus(ctx context.Context, userID, status string)
	GetUnread(ctx context.Context, userID string) ([]models.UnreadChat, bool)
	SetUnread(ctx context.Context, userID string, chats []models.UnreadChat, ttl time.Duration)
	InvalidateUnread(ctx context.Context, userIDs ...string)
}
