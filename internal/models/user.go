package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 用户在线状态
const (
	UserStatusOnline  = "online"
	UserStatusOffline = "offline"
	UserStatusAway    = "away"
)

// ValidUserStatus 校验用户状态取值
func ValidUserStatus(status string) bool {
	switch status {
	case UserStatusOnline, UserStatusOffline, UserStatusAway:
		return true
	}
	return false
}

// User 用户文档
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username string             `bson:"username" json:"username"`
	Email    string             `bson:"email" json:"email"`
	Password string             `bson:"password" json:"-"`
	Name     string             `bson:"name" json:"name"`
	Avatar   string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Status   string             `bson:"status" json:"status"`
	LastSeen time.Time          `bson:"last_seen" json:"last_seen"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (User) Collection() string {
	return "users"
}

// UserPublic 参与者解析后的公开字段投影
type UserPublic struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Username string             `bson:"username" json:"username"`
	Name     string             `bson:"name" json:"name"`
	Avatar   string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Status   string             `bson:"status" json:"status"`
}

// Public 返回用户的公开投影
func (u *User) Public() UserPublic {
	return UserPublic{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Avatar:   u.Avatar,
		Status:   u.Status,
	}
}
