package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnalyzeResponse 分析接口的响应。Analysis 字段可能是字符串，
// 也可能是任意结构化值，消费方需要做美化输出兜底。
type AnalyzeResponse struct {
	Success        bool        `json:"success,omitempty"`
	AnalysisID     string      `json:"analysis_id,omitempty"`
	ExtractedText  string      `json:"extracted_text,omitempty"`
	Ingredients    string      `json:"ingredients,omitempty"`
	Nutrition      string      `json:"nutrition,omitempty"`
	Analysis       interface{} `json:"analysis,omitempty"`
	Recommendation string      `json:"recommendation,omitempty"`
	HealthScore    int         `json:"health_score,omitempty"`
	Summary        string      `json:"summary,omitempty"`
	Timestamp      string      `json:"timestamp,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// AnalysisText 返回 analysis 字段的文本形式，非字符串时美化输出
func (r *AnalyzeResponse) AnalysisText() string {
	if r.Analysis == nil {
		return ""
	}
	if s, ok := r.Analysis.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(r.Analysis, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", r.Analysis)
	}
	return string(data)
}

// Dump 整个响应的结构化文本，analysis 字段缺失时用作兜底内容
func (r *AnalyzeResponse) Dump() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", *r)
	}
	return string(data)
}

type ChatResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

type SessionSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type SessionDetail struct {
	ChatID    string          `json:"chat_id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	Messages  []StoredMessage `json:"messages"`
}
