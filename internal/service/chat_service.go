package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"nutrimind/internal/config"
	"nutrimind/internal/model"
	"nutrimind/internal/storage"
	"nutrimind/pkg/logger"
)

const followupGuard = "Answer ONLY if the question is about health, nutrition, or ingredients. " +
	"If not, reply: 'I'm here to answer health-related questions about this product.'"

type ChatService struct {
	cfg     *config.OpenAIConfig
	llm     LLMClient
	storage storage.Storage
}

func NewChatService(cfg *config.OpenAIConfig, llm LLMClient, store storage.Storage) *ChatService {
	return &ChatService{
		cfg:     cfg,
		llm:     llm,
		storage: store,
	}
}

// StartSession 为一次新的分析建立会话，播种图片消息和分析消息。
// 会话 ID 直接复用分析 ID，追问接口凭它定位上下文。
func (s *ChatService) StartSession(analysis *model.FoodAnalysis, imageURL string) error {
	title := analysis.Summary
	if title == "" {
		title = "Food label analysis " + analysis.CreatedAt.Format("2006-01-02 15:04")
	}

	now := time.Now()
	session := &model.ChatSession{
		ID:        analysis.ID,
		Title:     truncateString(title, 30),
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []model.StoredMessage{
			{
				ID:        uuid.New().String(),
				Role:      string(model.RoleUser),
				ImageURL:  imageURL,
				Timestamp: now,
			},
			{
				ID:        uuid.New().String(),
				Role:      string(model.RoleAssistant),
				Content:   analysis.AnalysisResult,
				Timestamp: now.Add(time.Millisecond),
			},
		},
	}

	if err := s.storage.CreateSession(session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Followup 回答针对某次分析的追问，并把问答记录进会话
func (s *ChatService) Followup(ctx context.Context, analysisID, question string, history []model.QAPair) (string, error) {
	analysis, err := s.storage.GetAnalysis(analysisID)
	if err != nil {
		if err == storage.ErrAnalysisNotFound {
			return "", fmt.Errorf("%w: %s", storage.ErrAnalysisNotFound, analysisID)
		}
		return "", fmt.Errorf("failed to get analysis: %w", err)
	}

	prompt := s.buildFollowupPrompt(analysis, question, history)

	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("followup call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	answer := resp.Choices[0].Message.Content
	s.recordExchange(analysisID, question, answer)

	return answer, nil
}

// buildFollowupPrompt 组装营养师追问提示词：标签上下文 + 历史问答 + 本次提问
func (s *ChatService) buildFollowupPrompt(analysis *model.FoodAnalysis, question string, history []model.QAPair) string {
	var b strings.Builder

	b.WriteString("You are a nutritionist. Here is the food label info:\n")
	fmt.Fprintf(&b, "EXTRACTED TEXT: %s\n", analysis.ExtractedText)
	fmt.Fprintf(&b, "INGREDIENTS: %s\n", analysis.IngredientsText)
	fmt.Fprintf(&b, "NUTRITION: %s\n", analysis.NutritionText)

	if len(history) > 0 {
		b.WriteString("\nPrevious Q&A:\n")
		for _, qa := range history {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
		}
	}

	fmt.Fprintf(&b, "\nUser's follow-up question: %s\n", question)
	b.WriteString(followupGuard)

	return b.String()
}

// recordExchange 把一轮问答写入会话，失败只记日志不影响响应
func (s *ChatService) recordExchange(sessionID, question, answer string) {
	now := time.Now()
	msgs := []*model.StoredMessage{
		{ID: uuid.New().String(), Role: string(model.RoleUser), Content: question, Timestamp: now},
		{ID: uuid.New().String(), Role: string(model.RoleAssistant), Content: answer, Timestamp: now.Add(time.Millisecond)},
	}

	for _, msg := range msgs {
		if err := s.storage.AddMessage(sessionID, msg); err != nil {
			logger.Warnf("Failed to record message for session %s: %v", sessionID, err)
			return
		}
	}
}

func (s *ChatService) ListSessions() ([]model.SessionSummary, error) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	summaries := make([]model.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, model.SessionSummary{
			ID:    session.ID,
			Title: session.Title,
		})
	}

	return summaries, nil
}

func (s *ChatService) GetSessionDetail(sessionID string) (*model.SessionDetail, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("%w: %s", storage.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &model.SessionDetail{
		ChatID:    session.ID,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		Messages:  session.Messages,
	}, nil
}

// truncateString 按 Unicode 字符安全截断，避免标题过长
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
