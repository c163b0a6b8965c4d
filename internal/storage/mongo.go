package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Gopher0727/ChatLib/config"
	"github.com/Gopher0727/ChatLib/internal/models"
)

// Mongo 持有客户端与库句柄
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// InitMongo 初始化 MongoDB 连接并确保索引存在
func InitMongo(ctx context.Context, cfg *config.MongoConfig) (*Mongo, error) {
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("连接 MongoDB 失败: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("MongoDB ping 失败: %w", err)
	}

	db := client.Database(cfg.Database)
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("创建索引失败: %w", err)
	}

	return &Mongo{Client: client, Database: db}, nil
}

// Close 断开 MongoDB 连接
func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// ensureIndexes 建立唯一约束与查询索引：
//   - users: username / email 唯一
//   - chats: 单聊 pair_key 唯一（部分索引，仅 is_group=false），消除并发建单聊的重复窗口
//   - messages: chat_id + created_at 组合索引，按时间分页查询
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection(models.User{}.Collection()).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return err
	}

	chatIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_group", Value: false}}),
		},
		{
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_activity", Value: -1}},
		},
	}
	if _, err := db.Collection(models.Chat{}.Collection()).Indexes().CreateMany(ctx, chatIndexes); err != nil {
		return err
	}

	messageIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "sender", Value: 1}, {Key: "read_by", Value: 1}},
		},
	}
	if _, err := db.Collection(models.Message{}.Collection()).Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return err
	}

	return nil
}
