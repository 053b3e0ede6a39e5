package tui

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nutrimind/internal/model"
	"nutrimind/internal/transfer"
)

type analyzeDoneMsg struct {
	resp    *model.AnalyzeResponse
	dataURL string
	err     error
}

type switchToChatMsg struct{}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	resultStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type uploadModel struct {
	ctx       *appCtx
	input     textinput.Model
	spin      spinner.Model
	analyzing bool
	resp      *model.AnalyzeResponse
	dataURL   string
	errText   string
	width     int
}

func newUploadModel(ctx *appCtx) uploadModel {
	in := textinput.New()
	in.Placeholder = "Path to a food label image"
	in.Prompt = "> "
	in.Focus()
	in.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return uploadModel{
		ctx:   ctx,
		input: in,
		spin:  s,
	}
}

func (m uploadModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *uploadModel) setSize(width, _ int) {
	m.width = width
}

func (m uploadModel) Update(msg tea.Msg) (uploadModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			return m.handleEnter()
		}

	case analyzeDoneMsg:
		m.analyzing = false
		if msg.err != nil {
			m.errText = "Error analyzing file: " + msg.err.Error()
			return m, nil
		}
		m.resp = msg.resp
		m.dataURL = msg.dataURL
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m uploadModel) handleEnter() (uploadModel, tea.Cmd) {
	if m.analyzing {
		return m, nil
	}

	// 分析完成后再按 Enter：写入一次性交接载荷并切到会话页
	if m.resp != nil {
		m.ctx.store.Save(transfer.PendingTransfer{
			ImageData:  m.dataURL,
			Summary:    m.resp.Summary,
			Analysis:   m.resp.Dump(),
			AnalysisID: m.resp.AnalysisID,
		})
		return m, func() tea.Msg { return switchToChatMsg{} }
	}

	path := strings.TrimSpace(m.input.Value())
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.errText = "Cannot read file: " + err.Error()
		return m, nil
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		m.errText = "Not an image file: " + path
		return m, nil
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	client := m.ctx.client
	filename := filepath.Base(path)

	m.errText = ""
	m.analyzing = true

	analyze := func() tea.Msg {
		resp, err := client.Analyze(context.Background(), filename, data)
		return analyzeDoneMsg{resp: resp, dataURL: dataURL, err: err}
	}

	return m, tea.Batch(m.spin.Tick, analyze)
}

func (m uploadModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("NutriMind") + "\n")
	b.WriteString(hintStyle.Render("Upload a photo of a nutrition label or ingredient list to get AI-powered insights.") + "\n\n")
	b.WriteString(m.input.View() + "\n\n")

	if m.analyzing {
		b.WriteString(m.spin.View() + " Analyzing label...\n")
	}

	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText) + "\n")
	}

	if m.resp != nil {
		result := fmt.Sprintf("Recommendation: %s\nHealth score: %d/10\n\n%s",
			m.resp.Recommendation, m.resp.HealthScore, m.resp.Summary)
		b.WriteString(resultStyle.Render(result) + "\n\n")
		b.WriteString(hintStyle.Render("Press Enter to chat about this label") + "\n")
	}

	return b.String()
}
