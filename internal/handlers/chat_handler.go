package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Gopher0727/ChatLib/internal/chatlib"
	"github.com/Gopher0727/ChatLib/internal/models"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// ChatHandler 聊天页面与聊天管理接口
type ChatHandler struct {
	lib ChatLibrary
	log *logger.Logger
}

// NewChatHandler 创建聊天处理器实例
func NewChatHandler(lib ChatLibrary, log *logger.Logger) *ChatHandler {
	return &ChatHandler{lib: lib, log: log}
}

// chatListEntry 聊天列表页的展示项
type chatListEntry struct {
	Chat        models.ChatDetail
	DisplayName string
	Unread      int
	LastMessage string
}

// displayName 单聊显示对方的名字，群聊显示群名
func displayName(chat *models.ChatDetail, selfID string) string {
	if chat.IsGroup || chat.Name != "" {
		return chat.Name
	}
	for _, p := range chat.Participants {
		if p.ID.Hex() != selfID {
			return p.Name
		}
	}
	return "未知会话"
}

// ListChats 聊天列表页，带未读角标
func (h *ChatHandler) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString("user_id")

	chats := h.lib.FindChatsByUser(ctx, userID)
	if !chats.Success {
		c.HTML(statusFor(chats.Err), "error.html", gin.H{"Error": chats.Err.Message})
		return
	}

	unreadByChat := make(map[primitive.ObjectID]models.UnreadChat)
	totalUnread := 0
	if unread := h.lib.FindUnreadByUser(ctx, userID); unread.Success {
		totalUnread = unread.TotalUnread
		for _, u := range unread.UnreadByChat {
			unreadByChat[u.ChatID] = u
		}
	}

	entries := make([]chatListEntry, 0, len(chats.Chats))
	for _, chat := range chats.Chats {
		chat := chat
		entry := chatListEntry{
			Chat:        chat,
			DisplayName: displayName(&chat, userID),
		}
		if u, ok := unreadByChat[chat.ID]; ok {
			entry.Unread = u.Count
			entry.LastMessage = u.LastMessage
		}
		entries = append(entries, entry)
	}

	c.HTML(http.StatusOK, "chats_index.html", gin.H{
		"Title":       "聊天",
		"Username":    c.GetString("username"),
		"Chats":       entries,
		"TotalUnread": totalUnread,
	})
}

// ViewChat 聊天详情页，打开即把消息标记为已读
func (h *ChatHandler) ViewChat(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString("user_id")
	chatID := c.Param("id")

	chat := h.lib.FindChatByID(ctx, chatID, userID)
	if !chat.Success {
		c.HTML(statusFor(chat.Err), "error.html", gin.H{"Error": chat.Err.Message})
		return
	}

	h.lib.MarkMessagesAsRead(ctx, chatID, userID)

	msgs := h.lib.FindMessagesByChat(ctx, chatID, chatlib.FindMessagesParams{})
	if !msgs.Success {
		c.HTML(statusFor(msgs.Err), "error.html", gin.H{"Error": msgs.Err.Message})
		return
	}

	// 倒序查出来的消息按时间正序渲染
	ordered := make([]models.MessageDetail, 0, len(msgs.Messages))
	for i := len(msgs.Messages) - 1; i >= 0; i-- {
		ordered = append(ordered, msgs.Messages[i])
	}

	isAdmin := false
	for _, a := range chat.Chat.Admins {
		if a.ID.Hex() == userID {
			isAdmin = true
			break
		}
	}

	c.HTML(http.StatusOK, "chats_view.html", gin.H{
		"Title":       displayName(chat.Chat, userID),
		"Username":    c.GetString("username"),
		"UserID":      userID,
		"Chat":        chat.Chat,
		"DisplayName": displayName(chat.Chat, userID),
		"IsAdmin":     isAdmin,
		"Messages":    ordered,
		"Pagination":  msgs.Pagination,
	})
}

type createChatRequest struct {
	Participants []string `json:"participants"`
	Name         string   `json:"name"`
	IsGroup      bool     `json:"isGroup"`
	Description  string   `json:"description"`
	Image        string   `json:"image"`
}

// CreateChat 创建聊天，当前用户自动并入参与者首位（成为群主）
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"message": "请求参数格式错误"}})
		return
	}

	userID := c.GetString("user_id")
	participants := append([]string{userID}, req.Participants...)

	res := h.lib.CreateChat(c.Request.Context(), chatlib.CreateChatParams{
		Participants: participants,
		Name:         req.Name,
		IsGroup:      req.IsGroup,
		Description:  req.Description,
		Image:        req.Image,
	})
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	if res.AlreadyExists {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type addParticipantsRequest struct {
	Participants []string `json:"participants"`
}

// AddParticipants 向群聊添加参与者
func (h *ChatHandler) AddParticipants(c *gin.Context) {
	var req addParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"message": "请求参数格式错误"}})
		return
	}

	res := h.lib.AddChatParticipants(c.Request.Context(), c.Param("id"), req.Participants, c.GetString("user_id"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RemoveParticipant 从群聊移除参与者（或本人退出）
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	res := h.lib.RemoveChatParticipant(c.Request.Context(), c.Param("id"), c.Param("participantId"), c.GetString("user_id"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteChat 删除聊天
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	res := h.lib.DeleteChat(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}
