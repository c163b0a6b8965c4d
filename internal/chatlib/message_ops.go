package chatlib

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatLib/internal/errs"
	"github.com/Gopher0727/ChatLib/internal/models"
	"github.com/Gopher0727/ChatLib/internal/repositories"
)

// CreateMessageParams 发送消息参数，Type 为空时默认 text
type CreateMessageParams struct {
	ChatID   string
	Sender   string
	Content  string
	Type     string
	Metadata *models.MessageMetadata
}

// FindMessagesParams 消息分页参数。Limit<=0 时用默认值；
// Before/After 均为开区间过滤
type FindMessagesParams struct {
	Limit  int64
	Skip   int64
	Before *time.Time
	After  *time.Time
}

// CreateMessage 发送消息并刷新所在聊天的活跃时间，
// 同时使其他参与者的未读缓存失效
func (l *Library) CreateMessage(ctx context.Context, p CreateMessageParams) MessageResult {
	if err := l.ensureConnection(ctx); err != nil {
		return MessageResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{
		"chatId":  p.ChatID,
		"sender":  p.Sender,
		"content": p.Content,
	}); err != nil {
		return MessageResult{Err: l.fail(ctx, err, srcMessages)}
	}

	msgType := p.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !models.ValidMessageType(msgType) {
		return MessageResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeInvalidMessageType, "无效的消息类型 '%s'", p.Type), srcMessages)}
	}

	chatID, derr := parseChatID(p.ChatID)
	if derr != nil {
		return MessageResult{Err: l.fail(ctx, derr, srcMessages)}
	}
	senderID, serr := parseUserID(p.Sender)
	if serr != nil {
		return MessageResult{Err: l.fail(ctx, serr, srcMessages)}
	}

	msg := &models.Message{
		ChatID:   chatID,
		Sender:   senderID,
		Content:  p.Content,
		Type:     msgType,
		Metadata: p.Metadata,
	}
	if err := l.messages.Insert(ctx, msg); err != nil {
		return MessageResult{Err: l.fail(ctx, err, srcMessages)}
	}

	if err := l.chats.TouchActivity(ctx, chatID, msg.CreatedAt); err != nil {
		l.log.WarnContext(ctx, "刷新聊天活跃时间失败",
			zap.String("chat_id", p.ChatID), zap.Error(err))
	}

	if l.cache != nil {
		if chat, err := l.chats.GetByID(ctx, chatID); err == nil && chat != nil {
			var others []string
			for _, pid := range chat.Participants {
				if pid != senderID {
					others = append(others, pid.Hex())
				}
			}
			l.cache.InvalidateUnread(ctx, others...)
		}
	}

	l.log.InfoContext(ctx, "消息已发送",
		zap.String("chat_id", p.ChatID), zap.String("message_id", msg.ID.Hex()))

	detail, err := l.resolveMessage(ctx, msg)
	if err != nil {
		return MessageResult{Err: l.fail(ctx, err, srcMessages)}
	}
	return MessageResult{Success: true, Message: detail}
}

// FindMessagesByChat 分页查询聊天内的消息，按创建时间倒序
func (l *Library) FindMessagesByChat(ctx context.Context, chatID string, p FindMessagesParams) MessagesResult {
	if err := l.ensureConnection(ctx); err != nil {
		return MessagesResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"chatId": chatID}); err != nil {
		return MessagesResult{Err: l.fail(ctx, err, srcMessages)}
	}
	oid, derr := parseChatID(chatID)
	if derr != nil {
		return MessagesResult{Err: l.fail(ctx, derr, srcMessages)}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = repositories.DefaultMessageLimit
	}
	msgs, total, err := l.messages.FindByChat(ctx, oid, repositories.MessageFindOptions{
		Limit:  limit,
		Skip:   p.Skip,
		Before: p.Before,
		After:  p.After,
	})
	if err != nil {
		return MessagesResult{Err: l.fail(ctx, err, srcMessages)}
	}

	details, err := l.resolveMessages(ctx, msgs)
	if err != nil {
		return MessagesResult{Err: l.fail(ctx, err, srcMessages)}
	}
	return MessagesResult{
		Success:  true,
		Messages: details,
		Pagination: &Pagination{
			Total:   total,
			Limit:   limit,
			Skip:    p.Skip,
			HasMore: total > p.Skip+limit,
		},
	}
}

// MarkMessagesAsRead 把聊天中他人发送且该用户未读的消息全部标记为已读。
// 幂等：重复调用的 modifiedCount 为 0
func (l *Library) MarkMessagesAsRead(ctx context.Context, chatID, userID string) MarkReadResult {
	if err := l.ensureConnection(ctx); err != nil {
		return MarkReadResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{
		"chatId": chatID,
		"userId": userID,
	}); err != nil {
		return MarkReadResult{Err: l.fail(ctx, err, srcMessages)}
	}

	oid, derr := parseChatID(chatID)
	if derr != nil {
		return MarkReadResult{Err: l.fail(ctx, derr, srcMessages)}
	}
	uid, uerr := parseUserID(userID)
	if uerr != nil {
		return MarkReadResult{Err: l.fail(ctx, uerr, srcMessages)}
	}

	modified, err := l.messages.MarkRead(ctx, oid, uid)
	if err != nil {
		return MarkReadResult{Err: l.fail(ctx, err, srcMessages)}
	}

	if l.cache != nil {
		l.cache.InvalidateUnread(ctx, userID)
	}

	l.log.InfoContext(ctx, "消息已标记为已读",
		zap.String("chat_id", chatID), zap.Int64("modified", modified))
	return MarkReadResult{Success: true, ModifiedCount: modified}
}

// FindUnreadByUser 按聊天聚合用户的未读消息摘要。
// 结果短暂缓存，命中时不回源
func (l *Library) FindUnreadByUser(ctx context.Context, userID string) UnreadResult {
	if err := l.ensureConnection(ctx); err != nil {
		return UnreadResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"userId": userID}); err != nil {
		return UnreadResult{Err: l.fail(ctx, err, srcMessages)}
	}
	uid, derr := parseUserID(userID)
	if derr != nil {
		return UnreadResult{Err: l.fail(ctx, derr, srcMessages)}
	}

	if l.cache != nil {
		if chats, ok := l.cache.GetUnread(ctx, userID); ok {
			return UnreadResult{Success: true, UnreadByChat: chats, TotalUnread: sumUnread(chats)}
		}
	}

	chats, err := l.messages.UnreadByUser(ctx, uid)
	if err != nil {
		return UnreadResult{Err: l.fail(ctx, err, srcMessages)}
	}
	if chats == nil {
		chats = []models.UnreadChat{}
	}

	if l.cache != nil {
		l.cache.SetUnread(ctx, userID, chats, l.unreadTTL)
	}
	return UnreadResult{Success: true, UnreadByChat: chats, TotalUnread: sumUnread(chats)}
}

// DeleteMessage 删除消息。传入 userID 时只允许发送者本人删除
func (l *Library) DeleteMessage(ctx context.Context, messageID, userID string) OpResult {
	if err := l.ensureConnection(ctx); err != nil {
		return OpResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"messageId": messageID}); err != nil {
		return OpResult{Err: l.fail(ctx, err, srcMessages)}
	}
	oid, derr := parseMessageID(messageID)
	if derr != nil {
		return OpResult{Err: l.fail(ctx, derr, srcMessages)}
	}

	msg, err := l.messages.GetByID(ctx, oid)
	if err != nil {
		return OpResult{Err: l.fail(ctx, err, srcMessages)}
	}
	if msg == nil {
		return OpResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeMessageNotFound, "消息 '%s' 不存在", messageID), srcMessages)}
	}

	if userID != "" && msg.Sender.Hex() != userID {
		return OpResult{Err: l.fail(ctx,
			errs.New(errs.CodeNotSender, "只有发送者才能删除消息"), srcMessages)}
	}

	if _, err := l.messages.Delete(ctx, oid); err != nil {
		return OpResult{Err: l.fail(ctx, err, srcMessages)}
	}

	l.log.InfoContext(ctx, "消息已删除", zap.String("message_id", messageID))
	return OpResult{Success: true, Message: "消息已删除"}
}

func sumUnread(chats []models.UnreadChat) int {
	total := 0
	for _, c := range chats {
		total += c.Count
	}
	return total
}

// resolveMessage 解析单条消息的发送者与已读用户
func (l *Library) resolveMessage(ctx context.Context, msg *models.Message) (*models.MessageDetail, error) {
	details, err := l.resolveMessages(ctx, []models.Message{*msg})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// resolveMessages 批量解析消息涉及的用户，只查一次库
func (l *Library) resolveMessages(ctx context.Context, msgs []models.Message) ([]models.MessageDetail, error) {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, m := range msgs {
		if _, ok := seen[m.Sender]; !ok {
			seen[m.Sender] = struct{}{}
			ids = append(ids, m.Sender)
		}
		for _, r := range m.ReadBy {
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				ids = append(ids, r)
			}
		}
	}

	byID := make(map[primitive.ObjectID]models.UserPublic)
	if len(ids) > 0 {
		resolved, err := l.users.GetPublicByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, u := range resolved {
			byID[u.ID] = u
		}
	}

	details := make([]models.MessageDetail, 0, len(msgs))
	for _, m := range msgs {
		readBy := make([]models.UserPublic, 0, len(m.ReadBy))
		for _, r := range m.ReadBy {
			if u, ok := byID[r]; ok {
				readBy = append(readBy, u)
			}
		}
		details = append(details, models.MessageDetail{
			ID:        m.ID,
			ChatID:    m.ChatID,
			Sender:    byID[m.Sender],
			Content:   m.Content,
			Type:      m.Type,
			Metadata:  m.Metadata,
			Status:    m.Status,
			ReadBy:    readBy,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return details, nil
}
