package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatLib/internal/chatlib"
	"github.com/Gopher0727/ChatLib/internal/middlewares"
	"github.com/Gopher0727/ChatLib/internal/models"
	"github.com/Gopher0727/ChatLib/middleware/jwt"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// AuthHandler 登录注册处理器
type AuthHandler struct {
	lib    ChatLibrary
	tokens *jwt.TokenManager
	log    *logger.Logger
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(lib ChatLibrary, tokens *jwt.TokenManager, log *logger.Logger) *AuthHandler {
	return &AuthHandler{lib: lib, tokens: tokens, log: log}
}

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

type registerForm struct {
	Username        string `form:"username"`
	Email           string `form:"email"`
	Name            string `form:"name"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
}

// ShowLogin 登录页
func (h *AuthHandler) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Title": "登录"})
}

// Login 处理登录表单
func (h *AuthHandler) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"Error": "请求参数格式错误"})
		return
	}
	if form.Username == "" || form.Password == "" {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"Error": "请输入用户名和密码"})
		return
	}

	ctx := c.Request.Context()
	res := h.lib.FindUserByUsername(ctx, form.Username)
	if !res.Success || res.User.Password != form.Password {
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": "用户名或密码错误"})
		return
	}
	user := res.User

	if upd := h.lib.UpdateUserStatus(ctx, user.ID.Hex(), models.UserStatusOnline); !upd.Success {
		h.log.WarnContext(ctx, "登录后更新在线状态失败", zap.String("username", user.Username))
	}

	token, err := h.tokens.GenerateToken(user.ID.Hex(), user.Username, user.Name)
	if err != nil {
		h.log.ErrorContext(ctx, "签发会话 token 失败", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"Error": "登录失败, 请稍后再试"})
		return
	}

	c.SetCookie(middlewares.SessionCookie, token, 0, "/", "", false, true)
	c.Redirect(http.StatusFound, "/chats")
}

// ShowRegister 注册页
func (h *AuthHandler) ShowRegister(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", gin.H{"Title": "注册"})
}

// Register 处理注册表单
func (h *AuthHandler) Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "register.html", gin.H{"Error": "请求参数格式错误"})
		return
	}
	if form.Password != form.ConfirmPassword {
		c.HTML(http.StatusBadRequest, "register.html", gin.H{
			"Error": "两次输入的密码不一致",
			"Form":  form,
		})
		return
	}

	res := h.lib.CreateUser(c.Request.Context(), chatlib.CreateUserParams{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Name:     form.Name,
	})
	if !res.Success {
		c.HTML(statusFor(res.Err), "register.html", gin.H{
			"Error": res.Err.Message,
			"Form":  form,
		})
		return
	}

	c.Redirect(http.StatusFound, "/login")
}

// Logout 退出登录：状态置为离线并清除会话 cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	if userID := c.GetString("user_id"); userID != "" {
		h.lib.UpdateUserStatus(c.Request.Context(), userID, models.UserStatusOffline)
	}
	c.SetCookie(middlewares.SessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/login")
}
