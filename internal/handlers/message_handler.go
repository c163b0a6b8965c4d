package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ChatLib/internal/chatlib"
	"github.com/Gopher0727/ChatLib/internal/models"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// MessageHandler 消息接口
type MessageHandler struct {
	lib ChatLibrary
	log *logger.Logger
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(lib ChatLibrary, log *logger.Logger) *MessageHandler {
	return &MessageHandler{lib: lib, log: log}
}

type sendMessageRequest struct {
	Content  string                  `json:"content"`
	Type     string                  `json:"type"`
	Metadata *models.MessageMetadata `json:"metadata"`
}

// Send 发送消息。先按参与者身份取聊天，非参与者拿到的是 CHAT_NOT_FOUND
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"message": "请求参数格式错误"}})
		return
	}

	ctx := c.Request.Context()
	chatID := c.Param("id")
	userID := c.GetString("user_id")

	if chat := h.lib.FindChatByID(ctx, chatID, userID); !chat.Success {
		c.JSON(statusFor(chat.Err), chat)
		return
	}

	res := h.lib.CreateMessage(ctx, chatlib.CreateMessageParams{
		ChatID:   chatID,
		Sender:   userID,
		Content:  req.Content,
		Type:     req.Type,
		Metadata: req.Metadata,
	})
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListByChat 分页查询聊天内消息。
// limit/skip 为数字参数，before/after 为 RFC3339 时间戳
func (h *MessageHandler) ListByChat(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")
	userID := c.GetString("user_id")

	if chat := h.lib.FindChatByID(ctx, chatID, userID); !chat.Success {
		c.JSON(statusFor(chat.Err), chat)
		return
	}

	var params chatlib.FindMessagesParams
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.Limit = n
		}
	}
	if v := c.Query("skip"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.Skip = n
		}
	}
	if v := c.Query("before"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			params.Before = &ts
		}
	}
	if v := c.Query("after"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			params.After = &ts
		}
	}

	res := h.lib.FindMessagesByChat(ctx, chatID, params)
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// MarkRead 把聊天中的未读消息标记为已读
func (h *MessageHandler) MarkRead(c *gin.Context) {
	res := h.lib.MarkMessagesAsRead(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Unread 未读汇总，聊天列表页轮询用
func (h *MessageHandler) Unread(c *gin.Context) {
	res := h.lib.FindUnreadByUser(c.Request.Context(), c.GetString("user_id"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Delete 删除消息，仅发送者可删
func (h *MessageHandler) Delete(c *gin.Context) {
	res := h.lib.DeleteMessage(c.Request.Context(), c.Param("messageId"), c.GetString("user_id"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}
