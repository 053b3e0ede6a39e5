package storage

import (
	"sync"

	"nutrimind/internal/model"
)

type MemoryStorage struct {
	analyses map[string]*model.FoodAnalysis
	sessions map[string]*model.ChatSession
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		analyses: make(map[string]*model.FoodAnalysis),
		sessions: make(map[string]*model.ChatSession),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveAnalysis(analysis *model.FoodAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.analyses[analysis.ID] = analysis
	return nil
}

func (m *MemoryStorage) GetAnalysis(analysisID string) (*model.FoodAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	analysis, exists := m.analyses[analysisID]
	if !exists {
		return nil, ErrAnalysisNotFound
	}

	return analysis, nil
}

func (m *MemoryStorage) CreateSession(session *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStorage) GetSession(sessionID string) (*model.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

func (m *MemoryStorage) UpdateSession(session *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return ErrSessionNotFound
	}

	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStorage) ListSessions() ([]*model.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*model.ChatSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (m *MemoryStorage) AddMessage(sessionID string, message *model.StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}

	session.Messages = append(session.Messages, *message)
	return nil
}
