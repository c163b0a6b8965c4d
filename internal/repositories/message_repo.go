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

// DefaultMessageLimit 消息分页的默认每页条数
const DefaultMessageLimit = 50

// MessageFindOptions 消息分页与时间过滤选项
type MessageFindOptions struct {
	Limit  int64
	Skip   int64
	Before *time.Time // created_at < Before（开区间）
	After  *time.Time // created_at > After（开区间）
}

// MessageRepository 消息仓储
type MessageRepository struct {
	coll *mongo.Collection
}

// NewMessageRepository 创建消息仓储实例
func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{coll: db.Collection(models.Message{}.Collection())}
}

// Insert 插入消息文档
func (r *MessageRepository) Insert(ctx context.Context, msg *models.Message) error {
	now := time.Now()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	if msg.Status == "" {
		msg.Status = models.MessageStatusSent
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []primitive.ObjectID{}
	}
	msg.CreatedAt = now
	msg.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

// GetByID 根据 ID 获取消息，不存在时返回 (nil, nil)
func (r *MessageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByChat 按聊天分页查询消息（默认按创建时间倒序），返回消息页与过滤后的总条数
func (r *MessageRepository) FindByChat(ctx context.Context, chatID primitive.ObjectID, opts MessageFindOptions) ([]models.Message, int64, error) {
	filter := bson.M{"chat_id": chatID}
	created := bson.M{}
	if opts.Before != nil {
		created["$lt"] = *opts.Before
	}
	if opts.After != nil {
		created["$gt"] = *opts.After
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(opts.Skip).
		SetLimit(limit)

	cursor, err := r.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, err
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// MarkRead 把聊天内所有「非本人发送且本人未读」的消息标记为已读，返回修改条数。
// 条件里排除了已包含 userID 的 read_by，重复调用修改 0 条。
func (r *MessageRepository) MarkRead(ctx context.Context, chatID, userID primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"chat_id": chatID,
		"sender":  bson.M{"$ne": userID},
		"read_by": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{"read_by": userID},
		"$set":  bson.M{"status": models.MessageStatusRead, "updated_at": time.Now()},
	}

	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// UnreadByUser 跨所有聊天聚合该用户的未读消息：
// 按聊天分组计数，并取每组最新一条未读的内容与时间，按该时间倒序
func (r *MessageRepository) UnreadByUser(ctx context.Context, userID primitive.ObjectID) ([]models.UnreadChat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "sender", Value: bson.D{{Key: "$ne", Value: userID}}},
			{Key: "read_by", Value: bson.D{{Key: "$ne", Value: userID}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$chat_id"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last_message", Value: bson.D{{Key: "$last", Value: "$content"}}},
			{Key: "last_message_at", Value: bson.D{{Key: "$last", Value: "$created_at"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var unread []models.UnreadChat
	if err := cursor.All(ctx, &unread); err != nil {
		return nil, err
	}
	return unread, nil
}

// Delete 删除消息，返回是否确实删除了文档
func (r *MessageRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
