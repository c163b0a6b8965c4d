package chatlib

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatLib/internal/errs"
	"github.com/Gopher0727/ChatLib/internal/models"
	"github.com/Gopher0727/ChatLib/internal/repositories"
)

// CreateChatParams 创建聊天参数。IsGroup 为假但参与者超过两人时强制按群聊处理
type CreateChatParams struct {
	Participants []string
	Name         string
	IsGroup      bool
	Description  string
	Image        string
}

// CreateChat 创建聊天。单聊（恰好两人且非群聊）幂等：
// 同一对用户的第二次创建返回已存在的聊天并带 alreadyExists 标记
func (l *Library) CreateChat(ctx context.Context, p CreateChatParams) ChatResult {
	if err := l.ensureConnection(ctx); err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if len(p.Participants) == 0 {
		return ChatResult{Err: l.fail(ctx,
			errs.New(errs.CodeMissingRequiredFields, "缺少必填字段: participants"), srcChats)}
	}

	// 解析并去重参与者 ID，保持传入顺序（首位参与者将成为群主）
	seen := make(map[primitive.ObjectID]struct{})
	participants := make([]primitive.ObjectID, 0, len(p.Participants))
	for _, raw := range p.Participants {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return ChatResult{Err: l.fail(ctx,
				errs.Newf(errs.CodeInvalidParticipants, "参与者 ID '%s' 无效", raw), srcChats)}
		}
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		participants = append(participants, oid)
	}
	if len(participants) < 2 {
		return ChatResult{Err: l.fail(ctx,
			errs.New(errs.CodeInvalidParticipants, "一个聊天至少需要 2 名不同的参与者"), srcChats)}
	}

	isGroup := p.IsGroup || len(participants) > 2
	if isGroup && p.Name == "" {
		return ChatResult{Err: l.fail(ctx,
			errs.New(errs.CodeGroupNameRequired, "群聊必须有名称"), srcChats)}
	}

	if !isGroup {
		existing, err := l.chats.FindPair(ctx, participants[0], participants[1])
		if err != nil {
			return ChatResult{Err: l.fail(ctx, err, srcChats)}
		}
		if existing != nil {
			l.log.InfoContext(ctx, "两名用户之间已存在单聊", zap.String("chat_id", existing.ID.Hex()))
			detail, err := l.resolveChat(ctx, existing)
			if err != nil {
				return ChatResult{Err: l.fail(ctx, err, srcChats)}
			}
			return ChatResult{Success: true, Chat: detail, AlreadyExists: true}
		}
	}

	chat := &models.Chat{
		Name:         p.Name,
		Participants: participants,
		IsGroup:      isGroup,
		Metadata:     models.ChatMetadata{Description: p.Description, Image: p.Image},
	}
	if isGroup {
		chat.Admins = []primitive.ObjectID{participants[0]}
	} else {
		chat.PairKey = models.PairKey(participants[0], participants[1])
	}

	if err := l.chats.Insert(ctx, chat); err != nil {
		// 唯一索引兜住并发创建同一对单聊的竞争：输的一方取回已有聊天
		if !isGroup && repositories.IsDuplicatePair(err) {
			existing, ferr := l.chats.FindPair(ctx, participants[0], participants[1])
			if ferr == nil && existing != nil {
				detail, rerr := l.resolveChat(ctx, existing)
				if rerr == nil {
					return ChatResult{Success: true, Chat: detail, AlreadyExists: true}
				}
			}
		}
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}

	l.log.InfoContext(ctx, "聊天创建成功",
		zap.String("chat_id", chat.ID.Hex()), zap.Bool("is_group", isGroup))

	detail, err := l.resolveChat(ctx, chat)
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	return ChatResult{Success: true, Chat: detail}
}

// FindChatsByUser 获取用户参与的全部聊天，按最近活跃时间倒序
func (l *Library) FindChatsByUser(ctx context.Context, userID string) ChatsResult {
	if err := l.ensureConnection(ctx); err != nil {
		return ChatsResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"userId": userID}); err != nil {
		return ChatsResult{Err: l.fail(ctx, err, srcChats)}
	}
	oid, derr := parseUserID(userID)
	if derr != nil {
		return ChatsResult{Err: l.fail(ctx, derr, srcChats)}
	}

	chats, err := l.chats.ListByUser(ctx, oid)
	if err != nil {
		return ChatsResult{Err: l.fail(ctx, err, srcChats)}
	}
	details, err := l.resolveChats(ctx, chats)
	if err != nil {
		return ChatsResult{Err: l.fail(ctx, err, srcChats)}
	}
	return ChatsResult{Success: true, Chats: details}
}

// FindChatByID 根据 ID 获取聊天。传入 userID 时同时做授权检查：
// 非参与者与不存在返回同一个 CHAT_NOT_FOUND，调用方无法区分
func (l *Library) FindChatByID(ctx context.Context, chatID, userID string) ChatResult {
	if err := l.ensureConnection(ctx); err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"chatId": chatID}); err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	oid, derr := parseChatID(chatID)
	if derr != nil {
		return ChatResult{Err: l.fail(ctx, derr, srcChats)}
	}

	var chat *models.Chat
	var err error
	if userID != "" {
		notFound := errs.Newf(errs.CodeChatNotFound, "聊天 '%s' 不存在或用户不是参与者", chatID)
		uid, uerr := primitive.ObjectIDFromHex(userID)
		if uerr != nil {
			return ChatResult{Err: l.fail(ctx, notFound, srcChats)}
		}
		chat, err = l.chats.GetByIDForUser(ctx, oid, uid)
		if err == nil && chat == nil {
			return ChatResult{Err: l.fail(ctx, notFound, srcChats)}
		}
	} else {
		chat, err = l.chats.GetByID(ctx, oid)
		if err == nil && chat == nil {
			return ChatResult{Err: l.fail(ctx,
				errs.Newf(errs.CodeChatNotFound, "聊天 '%s' 不存在", chatID), srcChats)}
		}
	}
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}

	detail, err := l.resolveChat(ctx, chat)
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	return ChatResult{Success: true, Chat: detail}
}

// AddChatParticipants 向群聊添加参与者。addedBy 非空时要求其是管理员；
// 已在聊天中的 ID 静默跳过
func (l *Library) AddChatParticipants(ctx context.Context, chatID string, participantIDs []string, addedBy string) ChatResult {
	if err := l.ensureConnection(ctx); err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"chatId": chatID}); err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	if len(participantIDs) == 0 {
		return ChatResult{Err: l.fail(ctx,
			errs.New(errs.CodeMissingRequiredFields, "缺少必填字段: participants"), srcChats)}
	}

	oid, derr := parseChatID(chatID)
	if derr != nil {
		return ChatResult{Err: l.fail(ctx, derr, srcChats)}
	}
	chat, err := l.chats.GetByID(ctx, oid)
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	if chat == nil {
		return ChatResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeChatNotFound, "聊天 '%s' 不存在", chatID), srcChats)}
	}

	if !chat.IsGroup {
		return ChatResult{Err: l.fail(ctx,
			errs.New(errs.CodeNotGroupChat, "无法向单聊添加参与者"), srcChats)}
	}

	if addedBy != "" {
		adder, aerr := primitive.ObjectIDFromHex(addedBy)
		if aerr != nil || !chat.HasAdmin(adder) {
			return ChatResult{Err: l.fail(ctx,
				errs.New(errs.CodeNotAdmin, "只有管理员才能添加参与者"), srcChats)}
		}
	}

	var newIDs []primitive.ObjectID
	for _, raw := range participantIDs {
		pid, perr := primitive.ObjectIDFromHex(raw)
		if perr != nil {
			return ChatResult{Err: l.fail(ctx,
				errs.Newf(errs.CodeInvalidParticipants, "参与者 ID '%s' 无效", raw), srcChats)}
		}
		if !chat.HasParticipant(pid) {
			newIDs = append(newIDs, pid)
		}
	}

	if len(newIDs) == 0 {
		detail, rerr := l.resolveChat(ctx, chat)
		if rerr != nil {
			return ChatResult{Err: l.fail(ctx, rerr, srcChats)}
		}
		return ChatResult{Success: true, Message: "所有参与者都已在聊天中", Chat: detail}
	}

	updated, err := l.chats.AddParticipants(ctx, oid, newIDs)
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	if updated == nil {
		return ChatResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeChatNotFound, "聊天 '%s' 不存在", chatID), srcChats)}
	}

	l.log.InfoContext(ctx, "参与者已添加",
		zap.String("chat_id", chatID), zap.Int("count", len(newIDs)))

	detail, err := l.resolveChat(ctx, updated)
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	return ChatResult{Success: true, Chat: detail}
}

// RemoveChatParticipant 从群聊移除参与者。
// 授权：本人退出（removedBy == participantID）或 removedBy 是管理员。
// 移除后参与者为 0，或群聊只剩 1 人时，整个聊天被删除
func (l *Library) RemoveChatParticipant(ctx context.Context, chatID, participantID, removedBy string) ChatResult {
	if err := l.ensureConnection(ctx); err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{
		"chatId":        chatID,
		"participantId": participantID,
	}); err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}

	oid, derr := parseChatID(chatID)
	if derr != nil {
		return ChatResult{Err: l.fail(ctx, derr, srcChats)}
	}
	chat, err := l.chats.GetByID(ctx, oid)
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	if chat == nil {
		return ChatResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeChatNotFound, "聊天 '%s' 不存在", chatID), srcChats)}
	}

	if !chat.IsGroup {
		return ChatResult{Err: l.fail(ctx,
			errs.New(errs.CodeNotGroupChat, "无法从单聊移除参与者"), srcChats)}
	}

	isSelf := removedBy != "" && removedBy == participantID
	isAdmin := false
	if removedBy != "" {
		if remover, rerr := primitive.ObjectIDFromHex(removedBy); rerr == nil {
			isAdmin = chat.HasAdmin(remover)
		}
	}
	if !isSelf && !isAdmin {
		return ChatResult{Err: l.fail(ctx,
			errs.New(errs.CodeNotAdmin, "只有管理员才能移除其他参与者"), srcChats)}
	}

	pid, perr := primitive.ObjectIDFromHex(participantID)
	if perr != nil || !chat.HasParticipant(pid) {
		// 软失败：目标不在聊天中
		return ChatResult{Err: l.fail(ctx,
			errs.New(errs.CodeParticipantNotFound, "参与者不在该聊天中"), srcChats)}
	}

	updated, err := l.chats.PullParticipant(ctx, oid, pid)
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	if updated == nil {
		return ChatResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeChatNotFound, "聊天 '%s' 不存在", chatID), srcChats)}
	}

	if len(updated.Participants) == 0 {
		if _, err := l.chats.Delete(ctx, oid); err != nil {
			return ChatResult{Err: l.fail(ctx, err, srcChats)}
		}
		l.log.InfoContext(ctx, "聊天已删除: 没有剩余参与者", zap.String("chat_id", chatID))
		return ChatResult{Success: true, Message: "聊天已删除: 没有剩余参与者"}
	}

	if len(updated.Participants) == 1 && updated.IsGroup {
		if _, err := l.chats.Delete(ctx, oid); err != nil {
			return ChatResult{Err: l.fail(ctx, err, srcChats)}
		}
		l.log.InfoContext(ctx, "群聊已删除: 只剩一名参与者", zap.String("chat_id", chatID))
		return ChatResult{Success: true, Message: "群聊已删除: 只剩一名参与者"}
	}

	l.log.InfoContext(ctx, "参与者已移除",
		zap.String("chat_id", chatID), zap.String("participant_id", participantID))

	detail, err := l.resolveChat(ctx, updated)
	if err != nil {
		return ChatResult{Err: l.fail(ctx, err, srcChats)}
	}
	return ChatResult{Success: true, Chat: detail}
}

// DeleteChat 删除聊天。群聊且传入 userID 时要求其是管理员；单聊无此限制
func (l *Library) DeleteChat(ctx context.Context, chatID, userID string) OpResult {
	if err := l.ensureConnection(ctx); err != nil {
		return OpResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"chatId": chatID}); err != nil {
		return OpResult{Err: l.fail(ctx, err, srcChats)}
	}
	oid, derr := parseChatID(chatID)
	if derr != nil {
		return OpResult{Err: l.fail(ctx, derr, srcChats)}
	}

	chat, err := l.chats.GetByID(ctx, oid)
	if err != nil {
		return OpResult{Err: l.fail(ctx, err, srcChats)}
	}
	if chat == nil {
		return OpResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeChatNotFound, "聊天 '%s' 不存在", chatID), srcChats)}
	}

	if chat.IsGroup && userID != "" {
		uid, uerr := primitive.ObjectIDFromHex(userID)
		if uerr != nil || !chat.HasAdmin(uid) {
			return OpResult{Err: l.fail(ctx,
				errs.New(errs.CodeNotAdmin, "只有管理员才能删除群聊"), srcChats)}
		}
	}

	if _, err := l.chats.Delete(ctx, oid); err != nil {
		return OpResult{Err: l.fail(ctx, err, srcChats)}
	}

	l.log.InfoContext(ctx, "聊天已删除", zap.String("chat_id", chatID))
	return OpResult{Success: true, Message: "聊天已删除"}
}
