package model

import "time"

// FoodAnalysis 一次食品标签分析的持久化记录
type FoodAnalysis struct {
	ID              string    `json:"id"`
	ExtractedText   string    `json:"extracted_text"`
	IngredientsText string    `json:"ingredients_text"`
	NutritionText   string    `json:"nutrition_text"`
	AnalysisResult  string    `json:"analysis_result"`
	Recommendation  string    `json:"recommendation"`
	HealthScore     int       `json:"health_score"`
	Summary         string    `json:"summary"`
	CreatedAt       time.Time `json:"created_at"`
}

type StoredMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatSession struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []StoredMessage `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
