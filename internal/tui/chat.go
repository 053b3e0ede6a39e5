package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nutrimind/internal/chat"
	"nutrimind/internal/model"
)

type askDoneMsg struct{}

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	imageStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

type chatModel struct {
	ctx    *appCtx
	vp     viewport.Model
	input  textinput.Model
	width  int
	height int
}

func newChatModel(ctx *appCtx) chatModel {
	in := textinput.New()
	in.Placeholder = "Type your message..."
	in.Prompt = "> "
	in.Focus()
	in.Width = 60

	return chatModel{
		ctx:   ctx,
		input: in,
		vp:    viewport.New(80, 20),
	}
}

func (m chatModel) Init() tea.Cmd {
	ctrl := m.ctx.ctrl
	mount := func() tea.Msg {
		// 消费上传页留下的交接载荷，播种时间线
		ctrl.Mount()
		return timelineChangedMsg{}
	}
	return tea.Batch(mount, textinput.Blink)
}

func (m *chatModel) setSize(width, height int) {
	m.width = width
	m.height = height
	m.vp.Width = width
	m.vp.Height = height - 4
	m.input.Width = width - 4
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			return m.handleEnter()
		}

	case timelineChangedMsg:
		m.vp.SetContent(m.renderTimeline())
		m.vp.GotoBottom()
		return m, nil

	case askDoneMsg:
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m chatModel) handleEnter() (chatModel, tea.Cmd) {
	ctrl := m.ctx.ctrl

	// 等待回复或动画进行中时输入不可用
	if ctrl.State() == chat.StateAwaitingReply || ctrl.AnimatingID() != "" {
		return m, nil
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	m.input.Reset()
	ask := func() tea.Msg {
		ctrl.Ask(context.Background(), text)
		return askDoneMsg{}
	}
	return m, ask
}

func (m chatModel) renderTimeline() string {
	var b strings.Builder

	animating := m.ctx.ctrl.AnimatingID()
	for _, msg := range m.ctx.ctrl.Timeline() {
		if msg.Role == model.RoleUser {
			b.WriteString(userStyle.Render("You") + "\n")
		} else {
			b.WriteString(assistantStyle.Render("NutriMind") + "\n")
		}

		switch msg.ContentType {
		case model.ContentImage:
			b.WriteString(imageStyle.Render("[food label image]") + "\n\n")
		default:
			content := msg.Content
			if msg.ID == animating {
				content += "▌"
			}
			b.WriteString(content + "\n\n")
		}
	}

	return b.String()
}

func (m chatModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("NutriMind") + "\n")
	b.WriteString(m.vp.View() + "\n")

	if m.ctx.ctrl.State() == chat.StateAwaitingReply {
		b.WriteString(hintStyle.Render("NutriMind is typing...") + "\n")
	} else {
		b.WriteString(m.input.View() + "\n")
	}

	return b.String()
}
