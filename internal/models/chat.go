package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMetadata 聊天附加信息
type ChatMetadata struct {
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Image       string `bson:"image,omitempty" json:"image,omitempty"`
}

// Chat 聊天文档。单聊固定 2 名参与者且无名称无管理员；
// 群聊必须有名称，管理员集合永远是参与者集合的子集。
type Chat struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name,omitempty" json:"name,omitempty"`
	Participants []primitive.ObjectID `bson:"participants" json:"participants"`
	IsGroup      bool                 `bson:"is_group" json:"is_group"`
	Admins       []primitive.ObjectID `bson:"admins" json:"admins"`
	// PairKey 仅单聊使用：两名参与者 ID 排序后拼接，
	// 配合唯一索引保证同一对用户只存在一个单聊
	PairKey      string       `bson:"pair_key,omitempty" json:"-"`
	LastActivity time.Time    `bson:"last_activity" json:"last_activity"`
	Metadata     ChatMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (Chat) Collection() string {
	return "chats"
}

// PairKey 计算单聊对键，与参与者顺序无关
func PairKey(a, b primitive.ObjectID) string {
	ah, bh := a.Hex(), b.Hex()
	if ah > bh {
		ah, bh = bh, ah
	}
	return ah + ":" + bh
}

// HasParticipant 判断用户是否为参与者
func (c *Chat) HasParticipant(id primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// HasAdmin 判断用户是否为管理员
func (c *Chat) HasAdmin(id primitive.ObjectID) bool {
	for _, a := range c.Admins {
		if a == id {
			return true
		}
	}
	return false
}

// ChatDetail 参与者与管理员解析后的聊天视图
type ChatDetail struct {
	ID           primitive.ObjectID `json:"id"`
	Name         string             `json:"name,omitempty"`
	IsGroup      bool               `json:"is_group"`
	Participants []UserPublic       `json:"participants"`
	Admins       []UserPublic       `json:"admins"`
	LastActivity time.Time          `json:"last_activity"`
	Metadata     ChatMetadata       `json:"metadata,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
