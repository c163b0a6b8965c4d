package handlers

import (
	"context"
	"net/http"

	"github.com/Gopher0727/ChatLib/internal/chatlib"
	"github.com/Gopher0727/ChatLib/internal/errs"
)

// ChatLibrary 处理器依赖的数据访问门面
type ChatLibrary interface {
	CreateUser(ctx context.Context, p chatlib.CreateUserParams) chatlib.UserResult
	FindUserByUsername(ctx context.Context, username string) chatlib.UserResult
	UpdateUserStatus(ctx context.Context, userID, status string) chatlib.UserResult
	ListAllUsers(ctx context.Context) chatlib.UsersResult
	DeleteUser(ctx context.Context, userID string) chatlib.OpResult

	CreateChat(ctx context.Context, p chatlib.CreateChatParams) chatlib.ChatResult
	FindChatsByUser(ctx context.Context, userID string) chatlib.ChatsResult
	FindChatByID(ctx context.Context, chatID, userID string) chatlib.ChatResult
	AddChatParticipants(ctx context.Context, chatID string, participantIDs []string, addedBy string) chatlib.ChatResult
	RemoveChatParticipant(ctx context.Context, chatID, participantID, removedBy string) chatlib.ChatResult
	DeleteChat(ctx context.Context, chatID, userID string) chatlib.OpResult

	CreateMessage(ctx context.Context, p chatlib.CreateMessageParams) chatlib.MessageResult
	FindMessagesByChat(ctx context.Context, chatID string, p chatlib.FindMessagesParams) chatlib.MessagesResult
	MarkMessagesAsRead(ctx context.Context, chatID, userID string) chatlib.MarkReadResult
	FindUnreadByUser(ctx context.Context, userID string) chatlib.UnreadResult
	DeleteMessage(ctx context.Context, messageID, userID string) chatlib.OpResult
}

// statusFor 把错误码映射到 HTTP 状态码
func statusFor(info *errs.ErrorInfo) int {
	if info == nil {
		return http.StatusInternalServerError
	}
	switch info.Code {
	case errs.CodeMissingRequiredFields,
		errs.CodeInvalidParticipants,
		errs.CodeGroupNameRequired,
		errs.CodeNotGroupChat,
		errs.CodeInvalidMessageType:
		return http.StatusBadRequest
	case errs.CodeChatNotFound,
		errs.CodeUserNotFound,
		errs.CodeMessageNotFound,
		errs.CodeParticipantNotFound:
		return http.StatusNotFound
	case errs.CodeNotAdmin, errs.CodeNotSender:
		return http.StatusForbidden
	case errs.CodeDuplicateValue:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
