// Package tui 是终端客户端的展示壳：上传页和会话页两块屏幕，
// 会话逻辑全部由 chat.Controller 承担。
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"nutrimind/internal/api"
	"nutrimind/internal/chat"
	"nutrimind/internal/transfer"
)

type screen int

const (
	screenUpload screen = iota
	screenChat
)

// timelineChangedMsg 控制器时间线变化后的刷新通知（包括打字动画的每次揭示）
type timelineChangedMsg struct{}

// appCtx 在模型值拷贝之间共享的依赖
type appCtx struct {
	client  *api.Client
	store   *transfer.Store
	ctrl    *chat.Controller
	program *tea.Program
}

type App struct {
	ctx      *appCtx
	scr      screen
	upload   uploadModel
	chatView chatModel
	width    int
	height   int
}

func NewApp(client *api.Client, store *transfer.Store, ctrl *chat.Controller) *App {
	ctx := &appCtx{
		client: client,
		store:  store,
		ctrl:   ctrl,
	}

	// 控制器的每次变化都推一条刷新消息进事件循环
	ctrl.SetListener(func() {
		if ctx.program != nil {
			ctx.program.Send(timelineChangedMsg{})
		}
	})

	return &App{
		ctx:      ctx,
		scr:      screenUpload,
		upload:   newUploadModel(ctx),
		chatView: newChatModel(ctx),
	}
}

// SetProgram 注入 Program 句柄，供控制器监听器跨 goroutine 发消息
func (a *App) SetProgram(p *tea.Program) {
	a.ctx.program = p
}

func (a *App) Init() tea.Cmd {
	return a.upload.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.upload.setSize(msg.Width, msg.Height)
		a.chatView.setSize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			a.ctx.ctrl.Close()
			return a, tea.Quit
		}

	case switchToChatMsg:
		a.scr = screenChat
		return a, a.chatView.Init()
	}

	var cmd tea.Cmd
	switch a.scr {
	case screenUpload:
		a.upload, cmd = a.upload.Update(msg)
	case screenChat:
		a.chatView, cmd = a.chatView.Update(msg)
	}
	return a, cmd
}

func (a *App) View() string {
	switch a.scr {
	case screenChat:
		return a.chatView.View()
	default:
		return a.upload.View()
	}
}
