package model

// QAPair 一组重建出来的问答对，作为追问时的会话上下文发送
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ChatRequest struct {
	AnalysisID string   `json:"analysis_id" binding:"required"`
	Question   string   `json:"question" binding:"required"`
	History    []QAPair `json:"history"`
}
