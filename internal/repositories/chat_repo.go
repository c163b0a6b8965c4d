package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Gopher0727/ChatLib/internal/models"
)

// ChatRepository 聊天仓储
type ChatRepository struct {
	coll *mongo.Collection
}

// NewChatRepository 创建聊天仓储实例
func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{coll: db.Collection(models.Chat{}.Collection())}
}

// IsDuplicatePair 判断插入错误是否为单聊 pair_key 唯一索引冲突
func IsDuplicatePair(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// Insert 插入聊天文档
func (r *ChatRepository) Insert(ctx context.Context, chat *models.Chat) error {
	now := time.Now()
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	if chat.LastActivity.IsZero() {
		chat.LastActivity = now
	}
	if chat.Admins == nil {
		chat.Admins = []primitive.ObjectID{}
	}
	chat.CreatedAt = now
	chat.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, chat)
	return err
}

// FindPair 查找两名用户之间已存在的单聊，不存在时返回 (nil, nil)
func (r *ChatRepository) FindPair(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	filter := bson.M{"is_group": false, "pair_key": models.PairKey(a, b)}
	err := r.coll.FindOne(ctx, filter).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetByID 根据 ID 获取聊天，不存在时返回 (nil, nil)
func (r *ChatRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetByIDForUser 获取聊天并要求 userID 是参与者。
// 不存在与无权限同样返回 (nil, nil)，调用方无法区分两种情况。
func (r *ChatRepository) GetByIDForUser(ctx context.Context, id, userID primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	filter := bson.M{"_id": id, "participants": userID}
	err := r.coll.FindOne(ctx, filter).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListByUser 获取用户参与的全部聊天，按最近活跃时间倒序
func (r *ChatRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	var chats []models.Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// AddParticipants 向聊天追加参与者（$addToSet 自然去重）并刷新活跃时间，
// 返回更新后的文档
func (r *ChatRepository) AddParticipants(ctx context.Context, id primitive.ObjectID, participantIDs []primitive.ObjectID) (*models.Chat, error) {
	now := time.Now()
	update := bson.M{
		"$addToSet": bson.M{"participants": bson.M{"$each": participantIDs}},
		"$set":      bson.M{"last_activity": now, "updated_at": now},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var chat models.Chat
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// PullParticipant 单次更新内把用户同时移出参与者与管理员集合，
// 返回更新后的文档；两个并发移除不会基于过期的参与者数组互相覆盖
func (r *ChatRepository) PullParticipant(ctx context.Context, id, participantID primitive.ObjectID) (*models.Chat, error) {
	now := time.Now()
	update := bson.M{
		"$pull": bson.M{"participants": participantID, "admins": participantID},
		"$set":  bson.M{"last_activity": now, "updated_at": now},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var chat models.Chat
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// TouchActivity 刷新聊天的最近活跃时间
func (r *ChatRepository) TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"last_activity": at, "updated_at": at},
	})
	return err
}

// Delete 删除聊天，返回是否确实删除了文档
func (r *ChatRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
