package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Gopher0727/ChatLib/internal/chatlib"
	"github.com/Gopher0727/ChatLib/internal/errs"
	"github.com/Gopher0727/ChatLib/internal/models"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// stubLibrary 可编程的门面桩，未设置的方法返回失败信封
type stubLibrary struct {
	createUser       func(chatlib.CreateUserParams) chatlib.UserResult
	findUser         func(string) chatlib.UserResult
	updateStatus     func(string, string) chatlib.UserResult
	listUsers        func() chatlib.UsersResult
	createChat       func(chatlib.CreateChatParams) chatlib.ChatResult
	findChats        func(string) chatlib.ChatsResult
	findChat         func(string, string) chatlib.ChatResult
	addParticipants  func(string, []string, string) chatlib.ChatResult
	removeParticipan func(string, string, string) chatlib.ChatResult
	deleteChat       func(string, string) chatlib.OpResult
	createMessage    func(chatlib.CreateMessageParams) chatlib.MessageResult
	findMessages     func(string, chatlib.FindMessagesParams) chatlib.MessagesResult
	markRead         func(string, string) chatlib.MarkReadResult
	findUnread       func(string) chatlib.UnreadResult
	deleteMessage    func(string, string) chatlib.OpResult
}

func stubErr() *errs.ErrorInfo {
	return &errs.ErrorInfo{Message: "not wired", Code: errs.CodeUnknown, Source: "stub"}
}

func (s *stubLibrary) CreateUser(_ context.Context, p chatlib.CreateUserParams) chatlib.UserResult {
	if s.createUser != nil {
		return s.createUser(p)
	}
	return chatlib.UserResult{Err: stubErr()}
}

func (s *stubLibrary) FindUserByUsername(_ context.Context, username string) chatlib.UserResult {
	if s.findUser != nil {
		return s.findUser(username)
	}
	return chatlib.UserResult{Err: stubErr()}
}

func (s *stubLibrary) UpdateUserStatus(_ context.Context, userID, status string) chatlib.UserResult {
	if s.updateStatus != nil {
		return s.updateStatus(userID, status)
	}
	return chatlib.UserResult{Err: stubErr()}
}

func (s *stubLibrary) ListAllUsers(_ context.Context) chatlib.UsersResult {
	if s.listUsers != nil {
		return s.listUsers()
	}
	return chatlib.UsersResult{Err: stubErr()}
}

func (s *stubLibrary) DeleteUser(_ context.Context, userID string) chatlib.OpResult {
	return chatlib.OpResult{Err: stubErr()}
}

func (s *stubLibrary) CreateChat(_ context.Context, p chatlib.CreateChatParams) chatlib.ChatResult {
	if s.createChat != nil {
		return s.createChat(p)
	}
	return chatlib.ChatResult{Err: stubErr()}
}

func (s *stubLibrary) FindChatsByUser(_ context.Context, userID string) chatlib.ChatsResult {
	if s.findChats != nil {
		return s.findChats(userID)
	}
	return chatlib.ChatsResult{Err: stubErr()}
}

func (s *stubLibrary) FindChatByID(_ context.Context, chatID, userID string) chatlib.ChatResult {
	if s.findChat != nil {
		return s.findChat(chatID, userID)
	}
	return chatlib.ChatResult{Err: stubErr()}
}

func (s *stubLibrary) AddChatParticipants(_ context.Context, chatID string, participantIDs []string, addedBy string) chatlib.ChatResult {
	if s.addParticipants != nil {
		return s.addParticipants(chatID, participantIDs, addedBy)
	}
	return chatlib.ChatResult{Err: stubErr()}
}

func (s *stubLibrary) RemoveChatParticipant(_ context.Context, chatID, participantID, removedBy string) chatlib.ChatResult {
	if s.removeParticipan != nil {
		return s.removeParticipan(chatID, participantID, removedBy)
	}
	return chatlib.ChatResult{Err: stubErr()}
}

func (s *stubLibrary) DeleteChat(_ context.Context, chatID, userID string) chatlib.OpResult {
	if s.deleteChat != nil {
		return s.deleteChat(chatID, userID)
	}
	return chatlib.OpResult{Err: stubErr()}
}

func (s *stubLibrary) CreateMessage(_ context.Context, p chatlib.CreateMessageParams) chatlib.MessageResult {
	if s.createMessage != nil {
		return s.createMessage(p)
	}
	return chatlib.MessageResult{Err: stubErr()}
}

func (s *stubLibrary) FindMessagesByChat(_ context.Context, chatID string, p chatlib.FindMessagesParams) chatlib.MessagesResult {
	if s.findMessages != nil {
		return s.findMessages(chatID, p)
	}
	return chatlib.MessagesResult{Err: stubErr()}
}

func (s *stubLibrary) MarkMessagesAsRead(_ context.Context, chatID, userID string) chatlib.MarkReadResult {
	if s.markRead != nil {
		return s.markRead(chatID, userID)
	}
	return chatlib.MarkReadResult{Err: stubErr()}
}

func (s *stubLibrary) FindUnreadByUser(_ context.Context, userID string) chatlib.UnreadResult {
	if s.findUnread != nil {
		return s.findUnread(userID)
	}
	return chatlib.UnreadResult{Err: stubErr()}
}

func (s *stubLibrary) DeleteMessage(_ context.Context, messageID, userID string) chatlib.OpResult {
	if s.deleteMessage != nil {
		return s.deleteMessage(messageID, userID)
	}
	return chatlib.OpResult{Err: stubErr()}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewDevelopmentLogger()
	require.NoError(t, err)
	return log
}

// setUser 模拟认证中间件写入的上下文
func setUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("username", "tester")
		c.Next()
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{errs.CodeMissingRequiredFields, http.StatusBadRequest},
		{errs.CodeInvalidParticipants, http.StatusBadRequest},
		{errs.CodeGroupNameRequired, http.StatusBadRequest},
		{errs.CodeNotGroupChat, http.StatusBadRequest},
		{errs.CodeInvalidMessageType, http.StatusBadRequest},
		{errs.CodeChatNotFound, http.StatusNotFound},
		{errs.CodeUserNotFound, http.StatusNotFound},
		{errs.CodeMessageNotFound, http.StatusNotFound},
		{errs.CodeParticipantNotFound, http.StatusNotFound},
		{errs.CodeNotAdmin, http.StatusForbidden},
		{errs.CodeNotSender, http.StatusForbidden},
		{errs.CodeDuplicateValue, http.StatusConflict},
		{errs.CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got := statusFor(&errs.ErrorInfo{Code: tt.code})
		assert.Equal(t, tt.want, got, tt.code)
	}
	assert.Equal(t, http.StatusInternalServerError, statusFor(nil))
}

func TestCreateChatPrependsCurrentUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got chatlib.CreateChatParams
	chatID := primitive.NewObjectID()
	stub := &stubLibrary{
		createChat: func(p chatlib.CreateChatParams) chatlib.ChatResult {
			got = p
			return chatlib.ChatResult{Success: true, Chat: &models.ChatDetail{ID: chatID}}
		},
	}
	h := NewChatHandler(stub, testLogger(t))

	r := gin.New()
	r.POST("/chats", setUser("me"), h.CreateChat)

	w := doJSON(t, r, http.MethodPost, "/chats", gin.H{
		"participants": []string{"other"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"me", "other"}, got.Participants)
}

func TestCreateChatAlreadyExistsReturnsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)

	stub := &stubLibrary{
		createChat: func(chatlib.CreateChatParams) chatlib.ChatResult {
			return chatlib.ChatResult{Success: true, AlreadyExists: true, Chat: &models.ChatDetail{}}
		},
	}
	h := NewChatHandler(stub, testLogger(t))

	r := gin.New()
	r.POST("/chats", setUser("me"), h.CreateChat)

	w := doJSON(t, r, http.MethodPost, "/chats", gin.H{"participants": []string{"other"}})
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["alreadyExists"])
}

func TestSendRequiresMembership(t *testing.T) {
	gin.SetMode(gin.TestMode)

	created := false
	stub := &stubLibrary{
		findChat: func(chatID, userID string) chatlib.ChatResult {
			return chatlib.ChatResult{Err: &errs.ErrorInfo{
				Message: "聊天不存在", Code: errs.CodeChatNotFound, Source: "ChatRegistry",
			}}
		},
		createMessage: func(chatlib.CreateMessageParams) chatlib.MessageResult {
			created = true
			return chatlib.MessageResult{Success: true}
		},
	}
	h := NewMessageHandler(stub, testLogger(t))

	r := gin.New()
	r.POST("/chats/:id/messages", setUser("outsider"), h.Send)

	w := doJSON(t, r, http.MethodPost, "/chats/abc/messages", gin.H{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, created, "message must not be created for non-participants")
}

func TestListByChatParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got chatlib.FindMessagesParams
	stub := &stubLibrary{
		findChat: func(chatID, userID string) chatlib.ChatResult {
			return chatlib.ChatResult{Success: true, Chat: &models.ChatDetail{}}
		},
		findMessages: func(chatID string, p chatlib.FindMessagesParams) chatlib.MessagesResult {
			got = p
			return chatlib.MessagesResult{Success: true, Pagination: &chatlib.Pagination{}}
		},
	}
	h := NewMessageHandler(stub, testLogger(t))

	r := gin.New()
	r.GET("/chats/:id/messages", setUser("me"), h.ListByChat)

	req := httptest.NewRequest(http.MethodGet,
		"/chats/abc/messages?limit=10&skip=20&before=2026-01-15T10:00:00Z", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(10), got.Limit)
	assert.Equal(t, int64(20), got.Skip)
	require.NotNil(t, got.Before)
	assert.Equal(t, 2026, got.Before.Year())
	assert.Nil(t, got.After)
}

func TestDeleteMessageForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)

	stub := &stubLibrary{
		deleteMessage: func(messageID, userID string) chatlib.OpResult {
			return chatlib.OpResult{Err: &errs.ErrorInfo{
				Message: "只有发送者才能删除消息", Code: errs.CodeNotSender, Source: "MessageStore",
			}}
		},
	}
	h := NewMessageHandler(stub, testLogger(t))

	r := gin.New()
	r.DELETE("/messages/:messageId", setUser("me"), h.Delete)

	req := httptest.NewRequest(http.MethodDelete, "/messages/m1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotUser, gotStatus string
	stub := &stubLibrary{
		updateStatus: func(userID, status string) chatlib.UserResult {
			gotUser, gotStatus = userID, status
			return chatlib.UserResult{Success: true, User: &models.User{Status: status}}
		},
	}
	h := NewUserHandler(stub, testLogger(t))

	r := gin.New()
	r.PATCH("/users/me/status", setUser("me"), h.UpdateStatus)

	w := doJSON(t, r, http.MethodPatch, "/users/me/status", gin.H{"status": "away"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "me", gotUser)
	assert.Equal(t, "away", gotStatus)
}

func TestSearchUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	stub := &stubLibrary{
		findUser: func(username string) chatlib.UserResult {
			if username != "alice" {
				return chatlib.UserResult{Err: &errs.ErrorInfo{
					Code:    errs.CodeUserNotFound,
					Message: "用户不存在",
				}}
			}
			return chatlib.UserResult{Success: true, User: &models.User{Username: username}}
		},
	}
	h := NewUserHandler(stub, testLogger(t))

	r := gin.New()
	r.GET("/users/search", setUser("me"), h.Search)

	w := doJSON(t, r, http.MethodGet, "/users/search?username=alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alice"`)

	w = doJSON(t, r, http.MethodGet, "/users/search?username=nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnreadPoll(t *testing.T) {
	gin.SetMode(gin.TestMode)

	stub := &stubLibrary{
		findUnread: func(userID string) chatlib.UnreadResult {
			return chatlib.UnreadResult{
				Success:      true,
				UnreadByChat: []models.UnreadChat{{Count: 2}, {Count: 3}},
				TotalUnread:  5,
			}
		},
	}
	h := NewMessageHandler(stub, testLogger(t))

	r := gin.New()
	r.GET("/messages/unread", setUser("me"), h.Unread)

	req := httptest.NewRequest(http.MethodGet, "/messages/unread", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["totalUnread"])
}
