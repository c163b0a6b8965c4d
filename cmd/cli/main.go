package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Gopher0727/ChatLib/config"
	"github.com/Gopher0727/ChatLib/internal/chatlib"
	"github.com/Gopher0727/ChatLib/internal/models"
	logger "github.com/Gopher0727/ChatLib/middleware/log"
)

// cli 终端聊天客户端，直接调用聊天库门面，与 web 层共享同一套数据访问逻辑
type cli struct {
	lib    *chatlib.Library
	in     *bufio.Scanner
	user   *models.User
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	configPath := flag.String("config", "./config.toml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}
	// CLI 的日志写文件, 不干扰交互输出
	cfg.Logging.Output = "file"
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = "./logs/cli.log"
	}

	appLog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLog.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lib := chatlib.New(cfg, appLog)
	if err := lib.Connect(ctx); err != nil {
		log.Fatalf("聊天库连接失败: %v", err)
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = lib.Disconnect(shutdownCtx)
	}()

	app := &cli{
		lib:    lib,
		in:     bufio.NewScanner(os.Stdin),
		ctx:    ctx,
		cancel: cancel,
	}
	app.run()
}

func (a *cli) run() {
	fmt.Println("=== ChatLib 终端客户端 ===")
	for {
		var quit bool
		if a.user == nil {
			quit = a.loggedOutMenu()
		} else {
			quit = a.loggedInMenu()
		}
		if quit || a.ctx.Err() != nil {
			if a.user != nil {
				a.lib.UpdateUserStatus(a.ctx, a.user.ID.Hex(), models.UserStatusOffline)
			}
			fmt.Println("再见!")
			return
		}
	}
}

// loggedOutMenu 返回 true 表示退出程序
func (a *cli) loggedOutMenu() bool {
	fmt.Println()
	fmt.Println("未登录")
	fmt.Println("1. 登录  2. 注册  0. 退出")

	switch a.prompt("请选择") {
	case "1":
		a.login()
	case "2":
		a.register()
	case "0":
		return true
	default:
		if a.ctx.Err() == nil {
			fmt.Println("无效的选择")
		}
	}
	return a.ctx.Err() != nil
}

// loggedInMenu 返回 true 表示退出程序
func (a *cli) loggedInMenu() bool {
	fmt.Println()
	fmt.Printf("当前用户: %s (@%s)\n", a.user.Name, a.user.Username)
	fmt.Println("1. 我的聊天  2. 打开聊天  3. 创建聊天  4. 用户列表  5. 查找用户")
	fmt.Println("6. 更新状态  7. 未读汇总  8. 退出登录  0. 退出")

	switch a.prompt("请选择") {
	case "1":
		a.listChats()
	case "2":
		a.openChat()
	case "3":
		a.createChat()
	case "4":
		a.listUsers()
	case "5":
		a.searchUser()
	case "6":
		a.updateStatus()
	case "7":
		a.showUnread()
	case "8":
		a.logout()
	case "0":
		return true
	default:
		if a.ctx.Err() == nil {
			fmt.Println("无效的选择")
		}
	}
	return a.ctx.Err() != nil
}

func (a *cli) prompt(label string) string {
	fmt.Printf("%s> ", label)
	if !a.in.Scan() {
		a.cancel()
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

func (a *cli) register() {
	res := a.lib.CreateUser(a.ctx, chatlib.CreateUserParams{
		Username: a.prompt("用户名"),
		Email:    a.prompt("邮箱"),
		Name:     a.prompt("昵称"),
		Password: a.prompt("密码"),
	})
	if !res.Success {
		fmt.Printf("注册失败: %s [%s]\n", res.Err.Message, res.Err.Code)
		return
	}
	fmt.Printf("注册成功, 用户 ID: %s\n", res.User.ID.Hex())
}

func (a *cli) login() {
	username := a.prompt("用户名")
	password := a.prompt("密码")

	res := a.lib.FindUserByUsername(a.ctx, username)
	if !res.Success || res.User.Password != password {
		fmt.Println("用户名或密码错误")
		return
	}
	a.user = res.User
	a.lib.UpdateUserStatus(a.ctx, a.user.ID.Hex(), models.UserStatusOnline)
	fmt.Printf("欢迎, %s!\n", a.user.Name)
}

func (a *cli) logout() {
	a.lib.UpdateUserStatus(a.ctx, a.user.ID.Hex(), models.UserStatusOffline)
	fmt.Printf("%s 已退出登录\n", a.user.Username)
	a.user = nil
}

func (a *cli) searchUser() {
	res := a.lib.FindUserByUsername(a.ctx, a.prompt("用户名"))
	if !res.Success {
		fmt.Printf("查找失败: %s [%s]\n", res.Err.Message, res.Err.Code)
		return
	}
	u := res.User
	fmt.Printf("  %s  %s (@%s) [%s]\n", u.ID.Hex(), u.Name, u.Username, u.Status)
}

func (a *cli) updateStatus() {
	status := a.prompt("状态 (online/offline/away)")
	res := a.lib.UpdateUserStatus(a.ctx, a.user.ID.Hex(), status)
	if !res.Success {
		fmt.Printf("更新失败: %s [%s]\n", res.Err.Message, res.Err.Code)
		return
	}
	a.user = res.User
	fmt.Printf("状态已更新为 %s\n", res.User.Status)
}

func (a *cli) requireLogin() bool {
	if a.user == nil {
		fmt.Println("请先登录")
		return false
	}
	return true
}

func (a *cli) listUsers() {
	res := a.lib.ListAllUsers(a.ctx)
	if !res.Success {
		fmt.Printf("查询失败: %s\n", res.Err.Message)
		return
	}
	for _, u := range res.Users {
		fmt.Printf("  %s  %s (@%s) [%s]\n", u.ID.Hex(), u.Name, u.Username, u.Status)
	}
}

func (a *cli) listChats() {
	if !a.requireLogin() {
		return
	}
	res := a.lib.FindChatsByUser(a.ctx, a.user.ID.Hex())
	if !res.Success {
		fmt.Printf("查询失败: %s\n", res.Err.Message)
		return
	}
	if len(res.Chats) == 0 {
		fmt.Println("还没有聊天")
		return
	}

	unreadByChat := map[string]int{}
	if unread := a.lib.FindUnreadByUser(a.ctx, a.user.ID.Hex()); unread.Success {
		for _, u := range unread.UnreadByChat {
			unreadByChat[u.ChatID.Hex()] = u.Count
		}
	}

	for _, chat := range res.Chats {
		name := chat.Name
		if name == "" {
			for _, p := range chat.Participants {
				if p.ID != a.user.ID {
					name = p.Name
					break
				}
			}
		}
		kind := "单聊"
		if chat.IsGroup {
			kind = fmt.Sprintf("群聊 %d 人", len(chat.Participants))
		}
		line := fmt.Sprintf("  %s  %s [%s]", chat.ID.Hex(), name, kind)
		if n := unreadByChat[chat.ID.Hex()]; n > 0 {
			line += fmt.Sprintf("  %d 条未读", n)
		}
		fmt.Println(line)
	}
}

func (a *cli) createChat() {
	if !a.requireLogin() {
		return
	}
	raw := a.prompt("参与者 ID (逗号分隔)")
	participants := []string{a.user.ID.Hex()}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			participants = append(participants, p)
		}
	}
	name := a.prompt("群名称 (单聊留空)")

	res := a.lib.CreateChat(a.ctx, chatlib.CreateChatParams{
		Participants: participants,
		Name:         name,
		IsGroup:      name != "",
	})
	if !res.Success {
		fmt.Printf("创建失败: %s [%s]\n", res.Err.Message, res.Err.Code)
		return
	}
	if res.AlreadyExists {
		fmt.Printf("聊天已存在: %s\n", res.Chat.ID.Hex())
		return
	}
	fmt.Printf("创建成功: %s\n", res.Chat.ID.Hex())
}

func (a *cli) openChat() {
	if !a.requireLogin() {
		return
	}
	chatID := a.prompt("聊天 ID")

	chat := a.lib.FindChatByID(a.ctx, chatID, a.user.ID.Hex())
	if !chat.Success {
		fmt.Printf("打开失败: %s [%s]\n", chat.Err.Message, chat.Err.Code)
		return
	}

	a.lib.MarkMessagesAsRead(a.ctx, chatID, a.user.ID.Hex())

	msgs := a.lib.FindMessagesByChat(a.ctx, chatID, chatlib.FindMessagesParams{Limit: 20})
	if !msgs.Success {
		fmt.Printf("查询消息失败: %s\n", msgs.Err.Message)
		return
	}
	// 倒序查出来的消息按时间正序展示
	for i := len(msgs.Messages) - 1; i >= 0; i-- {
		m := msgs.Messages[i]
		fmt.Printf("  [%s] %s: %s\n", m.CreatedAt.Format("01-02 15:04"), m.Sender.Name, m.Content)
	}
	if msgs.Pagination.HasMore {
		fmt.Printf("  (共 %d 条, 仅显示最近 %d 条)\n", msgs.Pagination.Total, len(msgs.Messages))
	}

	content := a.prompt("发送消息 (留空跳过)")
	if content == "" {
		return
	}
	sent := a.lib.CreateMessage(a.ctx, chatlib.CreateMessageParams{
		ChatID:  chatID,
		Sender:  a.user.ID.Hex(),
		Content: content,
	})
	if !sent.Success {
		fmt.Printf("发送失败: %s [%s]\n", sent.Err.Message, sent.Err.Code)
		return
	}
	fmt.Println("已发送")
}

func (a *cli) showUnread() {
	if !a.requireLogin() {
		return
	}
	res := a.lib.FindUnreadByUser(a.ctx, a.user.ID.Hex())
	if !res.Success {
		fmt.Printf("查询失败: %s\n", res.Err.Message)
		return
	}
	if res.TotalUnread == 0 {
		fmt.Println("没有未读消息")
		return
	}
	fmt.Printf("共 %d 条未读:\n", res.TotalUnread)
	for _, u := range res.UnreadByChat {
		fmt.Printf("  %s  %d 条, 最新: %s\n", u.ChatID.Hex(), u.Count, u.LastMessage)
	}
}
