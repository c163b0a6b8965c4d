package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ChatLib/internal/middlewares"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// UserHandler 用户目录页面与用户接口
type UserHandler struct {
	lib ChatLibrary
	log *logger.Logger
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(lib ChatLibrary, log *logger.Logger) *UserHandler {
	return &UserHandler{lib: lib, log: log}
}

// ListUsers 用户目录页，从这里发起单聊
func (h *UserHandler) ListUsers(c *gin.Context) {
	res := h.lib.ListAllUsers(c.Request.Context())
	if !res.Success {
		c.HTML(statusFor(res.Err), "error.html", gin.H{"Error": res.Err.Message})
		return
	}

	c.HTML(http.StatusOK, "users_index.html", gin.H{
		"Title":    "用户",
		"Username": c.GetString("username"),
		"UserID":   c.GetString("user_id"),
		"Users":    res.Users,
	})
}

// ListUsersJSON 用户列表接口，建群选人用
func (h *UserHandler) ListUsersJSON(c *gin.Context) {
	res := h.lib.ListAllUsers(c.Request.Context())
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Search 按用户名精确查找用户
func (h *UserHandler) Search(c *gin.Context) {
	res := h.lib.FindUserByUsername(c.Request.Context(), c.Query("username"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus 更新当前用户的在线状态
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"message": "请求参数格式错误"}})
		return
	}

	res := h.lib.UpdateUserStatus(c.Request.Context(), c.GetString("user_id"), req.Status)
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteAccount 注销当前账号并清除会话
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	res := h.lib.DeleteUser(c.Request.Context(), c.GetString("user_id"))
	if !res.Success {
		c.JSON(statusFor(res.Err), res)
		return
	}
	c.SetCookie(middlewares.SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, res)
}

// Profile 个人资料页
func (h *UserHandler) Profile(c *gin.Context) {
	res := h.lib.FindUserByUsername(c.Request.Context(), c.GetString("username"))
	if !res.Success {
		c.HTML(statusFor(res.Err), "error.html", gin.H{"Error": res.Err.Message})
		return
	}

	c.HTML(http.StatusOK, "profile.html", gin.H{
		"Title":    "个人资料",
		"Username": c.GetString("username"),
		"User":     res.User,
	})
}
