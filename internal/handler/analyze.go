package handler

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nutrimind/internal/service"
	"nutrimind/pkg/logger"
)

type AnalyzeHandler struct {
	analyzeService *service.AnalyzeService
	chatService    *service.ChatService
	maxImageSize   int64
	mediaDir       string
}

func NewAnalyzeHandler(analyzeService *service.AnalyzeService, chatService *service.ChatService, maxImageSize int64, mediaDir string) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzeService: analyzeService,
		chatService:    chatService,
		maxImageSize:   maxImageSize,
		mediaDir:       mediaDir,
	}
}

// Analyze 接收上传的标签图片，返回结构化分析结果
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Please upload an image."})
		return
	}

	if fileHeader.Size > h.maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 10MB."})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	analysis, err := h.analyzeService.Analyze(c.Request.Context(), image, contentType)
	if err != nil {
		logger.Errorf("Analyze failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Analysis failed: %v", err)})
		return
	}

	imageURL := h.saveImage(analysis.ID, fileHeader.Filename, image)

	if err := h.chatService.StartSession(analysis, imageURL); err != nil {
		logger.Errorf("Failed to start session for analysis %s: %v", analysis.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"analysis_id":    analysis.ID,
		"extracted_text": analysis.ExtractedText,
		"ingredients":    analysis.IngredientsText,
		"nutrition":      analysis.NutritionText,
		"analysis":       analysis.AnalysisResult,
		"recommendation": analysis.Recommendation,
		"health_score":   analysis.HealthScore,
		"summary":        analysis.Summary,
		"timestamp":      analysis.CreatedAt.Format(time.RFC3339),
	})
}

// saveImage 把原图落到媒体目录，失败不阻断响应
func (h *AnalyzeHandler) saveImage(analysisID, filename string, image []byte) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("food_label_%s%s", analysisID, ext)

	if err := os.MkdirAll(h.mediaDir, 0755); err != nil {
		logger.Warnf("Failed to create media dir: %v", err)
		return ""
	}
	if err := os.WriteFile(filepath.Join(h.mediaDir, name), image, 0644); err != nil {
		logger.Warnf("Failed to save uploaded image: %v", err)
		return ""
	}

	return "/media/" + name
}
