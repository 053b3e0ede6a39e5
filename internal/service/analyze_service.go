package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"nutrimind/internal/config"
	"nutrimind/internal/model"
	"nutrimind/internal/storage"
	"nutrimind/pkg/logger"
)

// analysisPrompt 营养师分析提示词，响应格式固定以便解析
const analysisPrompt = `You are a certified nutritionist and food safety expert. Your task is to analyze a food label and provide a detailed health assessment, including specific, practical dietary advice for a general consumer.

---

### 🧾 EXTRACTED TEXT:
%s

### 🍽 INGREDIENTS:
%s

### 📊 NUTRITION INFORMATION:
%s

---

### 🎯 Your Response Format:

**RECOMMENDATION:** [EAT / AVOID / MODERATE]

**HEALTH SCORE:** [1-10]

**ANALYSIS:**
- **Ingredients:** Comment on ingredient quality, additives, preservatives, allergens, natural vs. artificial items.
- **Nutrition:** Discuss calories, sugar, fats, sodium, protein, fiber, vitamins, minerals.
- **Concerns:** Clearly highlight any issues like high sugar/sodium, trans fats, allergens, ultra-processing, etc.

**SUMMARY:** One strong sentence summarizing your overall health verdict and why.

---

### 🔍 Scoring Guidelines:
- 9-10: Excellent - clean ingredients, balanced nutrition, minimal processing
- 7-8: Good - minor concerns but generally healthy
- 5-6: Average - processed or sugary, eat occasionally
- 3-4: Poor - several concerns, eat rarely
- 1-2: Unhealthy - avoid due to serious nutritional issues`

const extractPrompt = `Transcribe every piece of text visible on this food label image. Return the raw text only, without commentary.`

var (
	recommendationRe = regexp.MustCompile(`(?i)\*\*RECOMMENDATION:\*\*\s*\[([^\]]+)\]`)
	healthScoreRe    = regexp.MustCompile(`(?i)\*\*HEALTH SCORE:\*\*\s*\[?(\d+)`)
	summaryRe        = regexp.MustCompile(`(?i)\*\*SUMMARY:\*\*\s*(.+)`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// LLMClient 覆盖服务用到的 go-openai 客户端子集
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func NewLLMClient(cfg *config.OpenAIConfig) LLMClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

type AnalyzeService struct {
	cfg     *config.OpenAIConfig
	llm     LLMClient
	storage storage.Storage
}

func NewAnalyzeService(cfg *config.OpenAIConfig, llm LLMClient, store storage.Storage) *AnalyzeService {
	return &AnalyzeService{
		cfg:     cfg,
		llm:     llm,
		storage: store,
	}
}

// Analyze 完整的标签分析流程：视觉模型抄录 → 分段 → 营养师分析 → 解析落库
func (s *AnalyzeService) Analyze(ctx context.Context, image []byte, contentType string) (*model.FoodAnalysis, error) {
	extracted, err := s.ExtractText(ctx, image, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to extract label text: %w", err)
	}

	ingredients, nutrition := SectionText(extracted)

	logger.Infof("Starting label analysis, extracted %d characters", len(extracted))
	raw, err := s.runAnalysis(ctx, extracted, ingredients, nutrition)
	if err != nil {
		return nil, fmt.Errorf("label analysis failed: %w", err)
	}

	analysis := parseAnalysisResult(raw)
	analysis.ID = uuid.New().String()
	analysis.ExtractedText = extracted
	analysis.IngredientsText = ingredients
	analysis.NutritionText = nutrition
	analysis.CreatedAt = time.Now()

	if err := s.storage.SaveAnalysis(analysis); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	logger.Infof("Analysis completed successfully for %s", analysis.ID)
	return analysis, nil
}

// ExtractText 用视觉模型抄录标签文本，替代原先的本地 OCR
func (s *AnalyzeService) ExtractText(ctx context.Context, image []byte, contentType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	visionModel := s.cfg.VisionModel
	if visionModel == "" {
		visionModel = s.cfg.Model
	}

	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: extractPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return CleanExtractedText(resp.Choices[0].Message.Content), nil
}

func (s *AnalyzeService) runAnalysis(ctx context.Context, extracted, ingredients, nutrition string) (string, error) {
	if extracted == "" {
		extracted = "No text extracted"
	}
	if ingredients == "" {
		ingredients = "No ingredients section found"
	}
	if nutrition == "" {
		nutrition = "No nutrition information found"
	}

	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(analysisPrompt, extracted, ingredients, nutrition),
			},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return resp.Choices[0].Message.Content, nil
}

// TestConnection 健康检查用的连通性探测
func (s *AnalyzeService) TestConnection(ctx context.Context) (bool, string) {
	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hello, respond with 'OK' if you can hear me."},
		},
		MaxTokens: 8,
	})
	if err != nil {
		return false, err.Error()
	}
	if len(resp.Choices) == 0 {
		return false, "empty response"
	}
	return true, resp.Choices[0].Message.Content
}

// CleanExtractedText 去掉空行并压缩多余空白
func CleanExtractedText(text string) string {
	if text == "" {
		return ""
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.Join(lines, "\n"), " "))
}

// SectionText 按关键词从抄录文本里切出配料段和营养段
func SectionText(text string) (ingredients, nutrition string) {
	if text == "" {
		return "", ""
	}

	lower := strings.ToLower(text)

	for _, keyword := range []string{"ingredients", "ingredient list", "contains"} {
		start := strings.Index(lower, keyword)
		if start == -1 {
			continue
		}
		end := start + 500
		if nutritionStart := strings.Index(lower[start:], "nutrition"); nutritionStart != -1 && start+nutritionStart < end {
			end = start + nutritionStart
		}
		if end > len(text) {
			end = len(text)
		}
		ingredients = strings.TrimSpace(text[start:end])
		break
	}

	for _, keyword := range []string{
		"nutrition facts", "nutrition information", "nutritional information",
		"calories", "protein", "carbohydrate", "fat", "sodium", "sugar",
	} {
		start := strings.Index(lower, keyword)
		if start == -1 {
			continue
		}
		end := start + 400
		if end > len(text) {
			end = len(text)
		}
		nutrition = strings.TrimSpace(text[start:end])
		break
	}

	return ingredients, nutrition
}

// parseAnalysisResult 从模型输出里解析推荐等级、健康评分和总结，
// 解析失败时回退到 MODERATE/5
func parseAnalysisResult(raw string) *model.FoodAnalysis {
	analysis := &model.FoodAnalysis{
		AnalysisResult: raw,
		Recommendation: "MODERATE",
		HealthScore:    5,
		Summary:        "No summary available",
	}

	if m := recommendationRe.FindStringSubmatch(raw); m != nil {
		analysis.Recommendation = strings.ToUpper(strings.TrimSpace(m[1]))
	}
	if m := healthScoreRe.FindStringSubmatch(raw); m != nil {
		if score, err := strconv.Atoi(m[1]); err == nil {
			analysis.HealthScore = score
		}
	}
	if m := summaryRe.FindStringSubmatch(raw); m != nil {
		analysis.Summary = strings.TrimSpace(m[1])
	}

	return analysis
}
