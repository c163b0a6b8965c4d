package chatlib

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatLib/internal/errs"
	"github.com/Gopher0727/ChatLib/internal/models"
)

// CreateUserParams 创建用户参数
type CreateUserParams struct {
	Username string
	Email    string
	Password string
	Name     string
	Avatar   string
}

// CreateUser 创建用户，用户名与邮箱必须唯一
func (l *Library) CreateUser(ctx context.Context, p CreateUserParams) UserResult {
	if err := l.ensureConnection(ctx); err != nil {
		return UserResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{
		"username": p.Username,
		"email":    p.Email,
		"password": p.Password,
		"name":     p.Name,
	}); err != nil {
		return UserResult{Err: l.fail(ctx, err, srcUsers)}
	}

	user := &models.User{
		Username: p.Username,
		Email:    p.Email,
		Password: p.Password,
		Name:     p.Name,
		Avatar:   p.Avatar,
	}
	if err := l.users.Create(ctx, user); err != nil {
		return UserResult{Err: l.fail(ctx, err, srcUsers)}
	}

	l.log.InfoContext(ctx, "用户创建成功", zap.String("username", user.Username))
	return UserResult{Success: true, User: user}
}

// FindUserByUsername 根据用户名查找用户
func (l *Library) FindUserByUsername(ctx context.Context, username string) UserResult {
	if err := l.ensureConnection(ctx); err != nil {
		return UserResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"username": username}); err != nil {
		return UserResult{Err: l.fail(ctx, err, srcUsers)}
	}

	user, err := l.users.GetByUsername(ctx, username)
	if err != nil {
		return UserResult{Err: l.fail(ctx, err, srcUsers)}
	}
	if user == nil {
		return UserResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeUserNotFound, "用户 '%s' 不存在", username), srcUsers)}
	}

	return UserResult{Success: true, User: user}
}

// UpdateUserStatus 更新用户在线状态
func (l *Library) UpdateUserStatus(ctx context.Context, userID, status string) UserResult {
	if err := l.ensureConnection(ctx); err != nil {
		return UserResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"userId": userID}); err != nil {
		return UserResult{Err: l.fail(ctx, err, srcUsers)}
	}
	if !models.ValidUserStatus(status) {
		return UserResult{Err: l.fail(ctx,
			fmt.Errorf("无效的状态 '%s', 可选: online, offline, away", status), srcUsers)}
	}

	oid, derr := parseUserID(userID)
	if derr != nil {
		return UserResult{Err: l.fail(ctx, derr, srcUsers)}
	}

	user, err := l.users.UpdateStatus(ctx, oid, status)
	if err != nil {
		return UserResult{Err: l.fail(ctx, err, srcUsers)}
	}
	if user == nil {
		return UserResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeUserNotFound, "用户 '%s' 不存在", userID), srcUsers)}
	}

	if l.cache != nil {
		l.cache.SetStatus(ctx, userID, status)
	}

	l.log.InfoContext(ctx, "用户状态已更新",
		zap.String("username", user.Username), zap.String("status", status))
	return UserResult{Success: true, User: user}
}

// ListAllUsers 列出全部用户（不含密码）
func (l *Library) ListAllUsers(ctx context.Context) UsersResult {
	if err := l.ensureConnection(ctx); err != nil {
		return UsersResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	users, err := l.users.List(ctx)
	if err != nil {
		return UsersResult{Err: l.fail(ctx, err, srcUsers)}
	}
	return UsersResult{Success: true, Users: users}
}

// DeleteUser 删除用户
func (l *Library) DeleteUser(ctx context.Context, userID string) OpResult {
	if err := l.ensureConnection(ctx); err != nil {
		return OpResult{Err: l.fail(ctx, err, srcLibrary)}
	}

	if err := errs.RequireFields(map[string]string{"userId": userID}); err != nil {
		return OpResult{Err: l.fail(ctx, err, srcUsers)}
	}

	oid, derr := parseUserID(userID)
	if derr != nil {
		return OpResult{Err: l.fail(ctx, derr, srcUsers)}
	}

	deleted, err := l.users.Delete(ctx, oid)
	if err != nil {
		return OpResult{Err: l.fail(ctx, err, srcUsers)}
	}
	if !deleted {
		return OpResult{Err: l.fail(ctx,
			errs.Newf(errs.CodeUserNotFound, "用户 '%s' 不存在", userID), srcUsers)}
	}

	l.log.InfoContext(ctx, "用户已删除", zap.String("user_id", userID))
	return OpResult{Success: true, Message: "用户已删除"}
}
