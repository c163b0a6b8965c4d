package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 消息类型
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeAudio  = "audio"
	MessageTypeVideo  = "video"
	MessageTypeSystem = "system"
)

// ValidMessageType 校验消息类型取值
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile,
		MessageTypeAudio, MessageTypeVideo, MessageTypeSystem:
		return true
	}
	return false
}

// 消息状态
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusDeleted   = "deleted"
)

// Dimensions 图片/视频尺寸
type Dimensions struct {
	Width  int `bson:"width,omitempty" json:"width,omitempty"`
	Height int `bson:"height,omitempty" json:"height,omitempty"`
}

// MessageMetadata 非文本消息的附加信息
type MessageMetadata struct {
	FileName   string      `bson:"file_name,omitempty" json:"file_name,omitempty"`
	FileSize   int64       `bson:"file_size,omitempty" json:"file_size,omitempty"`
	FileType   string      `bson:"file_type,omitempty" json:"file_type,omitempty"`
	Duration   float64     `bson:"duration,omitempty" json:"duration,omitempty"`
	Dimensions *Dimensions `bson:"dimensions,omitempty" json:"dimensions,omitempty"`
	URL        string      `bson:"url,omitempty" json:"url,omitempty"`
}

// Message 消息文档，归属于唯一的聊天与唯一的发送者。
// ReadBy 只增不减，且永远不包含发送者本人。
type Message struct {
	ID       primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ChatID   primitive.ObjectID   `bson:"chat_id" json:"chat_id"`
	Sender   primitive.ObjectID   `bson:"sender" json:"sender"`
	Content  string               `bson:"content" json:"content"`
	Type     string               `bson:"type" json:"type"`
	Metadata *MessageMetadata     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Status   string               `bson:"status" json:"status"`
	ReadBy   []primitive.ObjectID `bson:"read_by" json:"read_by"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (Message) Collection() string {
	return "messages"
}

// MessageDetail 发送者与已读用户解析后的消息视图
type MessageDetail struct {
	ID        primitive.ObjectID `json:"id"`
	ChatID    primitive.ObjectID `json:"chat_id"`
	Sender    UserPublic         `json:"sender"`
	Content   string             `json:"content"`
	Type      string             `json:"type"`
	Metadata  *MessageMetadata   `json:"metadata,omitempty"`
	Status    string             `json:"status"`
	ReadBy    []UserPublic       `json:"read_by"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// UnreadChat 按聊天聚合的未读摘要
type UnreadChat struct {
	ChatID        primitive.ObjectID `bson:"_id" json:"chat_id"`
	Count         int                `bson:"count" json:"count"`
	LastMessage   string             `bson:"last_message" json:"last_message"`
	LastMessageAt time.Time          `bson:"last_message_at" json:"last_message_at"`
}
