package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"nutrimind/internal/api"
	"nutrimind/internal/chat"
	"nutrimind/internal/config"
	"nutrimind/internal/transfer"
	"nutrimind/internal/tui"
	"nutrimind/internal/typing"
	"nutrimind/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 终端界面下只输出错误日志，避免打断渲染
	if err := logger.Init("error", cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	client := api.NewClient(&cfg.Client)
	store := transfer.NewStore()
	animator := typing.New(cfg.Typing.Interval, typing.TimerScheduler{})
	ctrl := chat.NewController(client, animator, store)
	defer ctrl.Close()

	app := tui.NewApp(client, store, ctrl)
	p := tea.NewProgram(app, tea.WithAltScreen())
	app.SetProgram(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
