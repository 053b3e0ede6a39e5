package storage

import (
	"nutrimind/internal/model"
)

type Storage interface {
	// 分析记录
	SaveAnalysis(analysis *model.FoodAnalysis) error
	GetAnalysis(analysisID string) (*model.FoodAnalysis, error)

	// 会话管理
	CreateSession(session *model.ChatSession) error
	GetSession(sessionID string) (*model.ChatSession, error)
	UpdateSession(session *model.ChatSession) error
	ListSessions() ([]*model.ChatSession, error)

	// 消息管理
	AddMessage(sessionID string, message *model.StoredMessage) error

	// 存储管理
	Init() error
	Close() error
}
