package service

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrimind/internal/config"
	"nutrimind/internal/storage"
)

// fakeLLM 按调用顺序回放预置响应
type fakeLLM struct {
	responses []string
	err       error
	calls     int
	requests  []openai.ChatCompletionRequest
}

func (f *fakeLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	content := ""
	if f.calls < len(f.responses) {
		content = f.responses[f.calls]
	}
	f.calls++
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func testOpenAIConfig() *config.OpenAIConfig {
	return &config.OpenAIConfig{
		Model:       "gpt-4o-mini",
		VisionModel: "gpt-4o",
		MaxTokens:   1024,
		Temperature: 0.3,
	}
}

const formattedAnalysis = `**RECOMMENDATION:** [MODERATE]

**HEALTH SCORE:** [6]

**ANALYSIS:**
- **Ingredients:** Mostly recognizable, contains added sugar.
- **Nutrition:** Sodium on the higher side.
- **Concerns:** High sugar content.

**SUMMARY:** Fine as an occasional snack, not an everyday food.`

func TestParseAnalysisResult(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantRec   string
		wantScore int
		wantSum   string
	}{
		{
			name:      "格式完整",
			raw:       formattedAnalysis,
			wantRec:   "MODERATE",
			wantScore: 6,
			wantSum:   "Fine as an occasional snack, not an everyday food.",
		},
		{
			name:      "评分不带方括号",
			raw:       "**RECOMMENDATION:** [eat]\n**HEALTH SCORE:** 9\n**SUMMARY:** Clean label.",
			wantRec:   "EAT",
			wantScore: 9,
			wantSum:   "Clean label.",
		},
		{
			name:      "完全不符合格式时回退默认值",
			raw:       "I cannot read this label.",
			wantRec:   "MODERATE",
			wantScore: 5,
			wantSum:   "No summary available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAnalysisResult(tt.raw)
			assert.Equal(t, tt.wantRec, got.Recommendation)
			assert.Equal(t, tt.wantScore, got.HealthScore)
			assert.Equal(t, tt.wantSum, got.Summary)
			assert.Equal(t, tt.raw, got.AnalysisResult)
		})
	}
}

func TestSectionText(t *testing.T) {
	text := "Brand Cookies. Ingredients: wheat flour, sugar, palm oil, salt. " +
		"Nutrition Facts: Calories 480, Sodium 320mg, Sugar 22g."

	ingredients, nutrition := SectionText(text)

	assert.True(t, len(ingredients) > 0)
	assert.Contains(t, ingredients, "wheat flour")
	// 配料段在营养段开头处截断
	assert.NotContains(t, ingredients, "Calories")
	assert.Contains(t, nutrition, "Calories 480")
}

func TestSectionTextMissingSections(t *testing.T) {
	ingredients, nutrition := SectionText("Just a brand slogan.")
	assert.Empty(t, ingredients)
	assert.Empty(t, nutrition)

	ingredients, nutrition = SectionText("")
	assert.Empty(t, ingredients)
	assert.Empty(t, nutrition)
}

func TestCleanExtractedText(t *testing.T) {
	raw := "  Brand   Cookies  \n\n\n  Net   Wt 100g  \n"
	assert.Equal(t, "Brand Cookies Net Wt 100g", CleanExtractedText(raw))
	assert.Equal(t, "", CleanExtractedText(""))
}

func TestAnalyzePersistsResult(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"Ingredients: wheat flour, sugar. Nutrition Facts: Calories 480.",
		formattedAnalysis,
	}}
	store := storage.NewMemoryStorage()
	svc := NewAnalyzeService(testOpenAIConfig(), llm, store)

	analysis, err := svc.Analyze(context.Background(), []byte{0x89, 0x50}, "image/png")
	require.NoError(t, err)

	assert.NotEmpty(t, analysis.ID)
	assert.Equal(t, "MODERATE", analysis.Recommendation)
	assert.Equal(t, 6, analysis.HealthScore)
	assert.Contains(t, analysis.IngredientsText, "wheat flour")
	assert.Contains(t, analysis.NutritionText, "Calories 480")

	saved, err := store.GetAnalysis(analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.ID, saved.ID)

	// 第一跳用视觉模型抄录，第二跳用文本模型分析
	require.Len(t, llm.requests, 2)
	assert.Equal(t, "gpt-4o", llm.requests[0].Model)
	require.NotEmpty(t, llm.requests[0].Messages[0].MultiContent)
	assert.Equal(t, "gpt-4o-mini", llm.requests[1].Model)
}

func TestAnalyzePropagatesLLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	svc := NewAnalyzeService(testOpenAIConfig(), llm, storage.NewMemoryStorage())

	_, err := svc.Analyze(context.Background(), []byte{1}, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract label text")
}

func TestTestConnection(t *testing.T) {
	ok, detail := NewAnalyzeService(testOpenAIConfig(), &fakeLLM{responses: []string{"OK"}}, storage.NewMemoryStorage()).
		TestConnection(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "OK", detail)

	ok, detail = NewAnalyzeService(testOpenAIConfig(), &fakeLLM{err: errors.New("down")}, storage.NewMemoryStorage()).
		TestConnection(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "down", detail)
}
