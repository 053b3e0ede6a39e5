package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nutrimind/internal/config"
	"nutrimind/internal/handler"
	"nutrimind/internal/service"
	"nutrimind/internal/storage"
	"nutrimind/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// 初始化存储和服务
	store := storage.New(&cfg.Storage)
	defer store.Close()

	llm := service.NewLLMClient(&cfg.OpenAI)
	analyzeService := service.NewAnalyzeService(&cfg.OpenAI, llm, store)
	chatService := service.NewChatService(&cfg.OpenAI, llm, store)

	// 初始化处理器
	mediaDir := filepath.Join(cfg.Storage.DataDir, "media")
	analyzeHandler := handler.NewAnalyzeHandler(analyzeService, chatService, cfg.Analyzer.MaxImageSize, mediaDir)
	chatHandler := handler.NewChatHandler(chatService)

	// 创建路由
	router := setupRouter(cfg, analyzeHandler, chatHandler, analyzeService, mediaDir)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// 启动服务器
	go func() {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	if err := server.Close(); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	logger.Info("服务器已关闭")
}

func setupRouter(cfg *config.Config, analyzeHandler *handler.AnalyzeHandler, chatHandler *handler.ChatHandler, analyzeService *service.AnalyzeService, mediaDir string) *gin.Engine {
	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS配置
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// 健康检查
	router.GET("/health", handler.Health(analyzeService))

	// 上传的标签原图
	router.Static("/media", mediaDir)

	// API路由
	api := router.Group("/api")
	{
		api.POST("/analyze/", analyzeHandler.Analyze)

		chat := api.Group("/chat")
		{
			chat.POST("/", chatHandler.Chat)
		}

		session := api.Group("/session")
		{
			session.GET("/list", chatHandler.GetSessionList)
			session.GET("/:session_id", chatHandler.GetSession)
		}
	}

	return router
}
