package chatlib

import (
	"github.com/Gopher0727/ChatLib/internal/errs"
	"github.com/Gopher0727/ChatLib/internal/models"
)

// 所有门面方法的返回值都是 {success, ...payload} 或 {success:false, error} 信封，
// 核心层的错误永远不会以 error/panic 的形式越过这层边界。

// UserResult 单个用户的结果信封
type UserResult struct {
	Success bool            `json:"success"`
	User    *models.User    `json:"user,omitempty"`
	Err     *errs.ErrorInfo `json:"error,omitempty"`
}

// UsersResult 用户列表的结果信封
type UsersResult struct {
	Success bool            `json:"success"`
	Users   []models.User   `json:"users,omitempty"`
	Err     *errs.ErrorInfo `json:"error,omitempty"`
}

// OpResult 删除类操作的结果信封
type OpResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Err     *errs.ErrorInfo `json:"error,omitempty"`
}

// ChatResult 单个聊天的结果信封。AlreadyExists 表示单聊去重命中，
// 返回的是已存在的聊天而不是新建的
type ChatResult struct {
	Success       bool               `json:"success"`
	Chat          *models.ChatDetail `json:"chat,omitempty"`
	AlreadyExists bool               `json:"alreadyExists,omitempty"`
	Message       string             `json:"message,omitempty"`
	Err           *errs.ErrorInfo    `json:"error,omitempty"`
}

// ChatsResult 聊天列表的结果信封
type ChatsResult struct {
	Success bool                `json:"success"`
	Chats   []models.ChatDetail `json:"chats,omitempty"`
	Err     *errs.ErrorInfo     `json:"error,omitempty"`
}

// MessageResult 单条消息的结果信封
type MessageResult struct {
	Success bool                  `json:"success"`
	Message *models.MessageDetail `json:"message,omitempty"`
	Err     *errs.ErrorInfo       `json:"error,omitempty"`
}

// Pagination 消息分页信息，HasMore = Total > Skip+Limit
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int64 `json:"limit"`
	Skip    int64 `json:"skip"`
	HasMore bool  `json:"hasMore"`
}

// MessagesResult 消息分页的结果信封
type MessagesResult struct {
	Success    bool                   `json:"success"`
	Messages   []models.MessageDetail `json:"messages,omitempty"`
	Pagination *Pagination            `json:"pagination,omitempty"`
	Err        *errs.ErrorInfo        `json:"error,omitempty"`
}

// MarkReadResult 标记已读的结果信封
type MarkReadResult struct {
	Success       bool            `json:"success"`
	ModifiedCount int64           `json:"modifiedCount"`
	Err           *errs.ErrorInfo `json:"error,omitempty"`
}

// UnreadResult 未读聚合的结果信封，TotalUnread 恒等于各聊天未读数之和
type UnreadResult struct {
	Success      bool                `json:"success"`
	UnreadByChat []models.UnreadChat `json:"unreadByChat"`
	TotalUnread  int                 `json:"totalUnread"`
	Err          *errs.ErrorInfo     `json:"error,omitempty"`
}
