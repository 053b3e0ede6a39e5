package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nutrimind/internal/model"
	"nutrimind/internal/service"
	"nutrimind/internal/storage"
	"nutrimind/pkg/logger"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// Chat 处理对已有分析的追问
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing analysis_id or question"})
		return
	}

	answer, err := h.chatService.Followup(c.Request.Context(), req.AnalysisID, req.Question, req.History)
	if err != nil {
		if errors.Is(err, storage.ErrAnalysisNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
			return
		}
		logger.Errorf("Followup failed for analysis %s: %v", req.AnalysisID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (h *ChatHandler) GetSessionList(c *gin.Context) {
	summaries, err := h.chatService.ListSessions()
	if err != nil {
		logger.Errorf("Failed to list sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summaries)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	detail, err := h.chatService.GetSessionDetail(sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		logger.Errorf("Failed to get session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Health 健康检查：报告 LLM 连通性
func Health(analyzeService *service.AnalyzeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		connected, message := analyzeService.TestConnection(c.Request.Context())

		status := "healthy"
		code := http.StatusOK
		if !connected {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status": status,
			"components": gin.H{
				"llm": gin.H{
					"status":  connected,
					"message": message,
				},
			},
		})
	}
}
