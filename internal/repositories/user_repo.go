package repositories

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Gopher0727/ChatLib/internal/errs"
	"github.com/Gopher0727/ChatLib/internal/models"
)

// UserRepository 用户仓储
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository 创建用户仓储实例
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(models.User{}.Collection())}
}

// Create 创建用户，用户名/邮箱唯一索引冲突时返回 DUPLICATE_VALUE
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Status == "" {
		user.Status = models.UserStatusOffline
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = now
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "email") {
				return errs.New(errs.CodeDuplicateValue, "邮箱已被占用")
			}
			return errs.New(errs.CodeDuplicateValue, "用户名已被占用")
		}
		return err
	}
	return nil
}

// GetByID 根据 ID 获取用户，不存在时返回 (nil, nil)
func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername 根据用户名获取用户，不存在时返回 (nil, nil)
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateStatus 更新用户状态并返回更新后的文档；离线时顺带更新 last_seen
func (r *UserRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.User, error) {
	now := time.Now()
	set := bson.M{"status": status, "updated_at": now}
	if status == models.UserStatusOffline {
		set["last_seen"] = now
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List 获取全部用户，密码字段不出库
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().
		SetProjection(bson.M{"password": 0}).
		SetSort(bson.D{{Key: "username", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Delete 删除用户，返回是否确实删除了文档
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// GetPublicByIDs 批量解析用户公开信息，结果保持传入 ID 的顺序，缺失的 ID 跳过
func (r *UserRepository) GetPublicByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.UserPublic, error) {
	if len(ids) == 0 {
		return []models.UserPublic{}, nil
	}

	opts := options.Find().SetProjection(bson.M{
		"username": 1, "name": 1, "avatar": 1, "status": 1,
	})
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	var found []models.UserPublic
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.UserPublic, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}

	resolved := make([]models.UserPublic, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			resolved = append(resolved, u)
		}
	}
	return resolved, nil
}
