package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"nutrimind/internal/model"
	"nutrimind/pkg/logger"
)

// DiskStorage 把分析记录和会话落到 JSON 文件，会话带一个索引文件，
// 内存里保留一个有上限的会话缓存。
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.ChatSession
	cacheSize int
}

type sessionIndex struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.ChatSession),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	for _, dir := range []string{
		d.dataDir,
		filepath.Join(d.dataDir, "analyses"),
		filepath.Join(d.dataDir, "sessions"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	if err := d.loadSessions(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Info("Disk storage initialized successfully")
	return nil
}

func (d *DiskStorage) Close() error {
	return nil
}

func (d *DiskStorage) loadSessions() error {
	indexPath := filepath.Join(d.dataDir, "sessions.json")

	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return d.saveIndex([]*sessionIndex{})
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return err
	}

	var indexes []*sessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return err
	}

	for _, index := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}

		session, err := d.loadSessionFile(index.ID)
		if err != nil {
			logger.Errorf("Failed to load session %s: %v", index.ID, err)
			continue
		}

		d.cache[index.ID] = session
	}

	return nil
}

func (d *DiskStorage) saveIndex(indexes []*sessionIndex) error {
	data, err := json.MarshalIndent(indexes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dataDir, "sessions.json"), data, 0644)
}

func (d *DiskStorage) rebuildIndexLocked() error {
	entries, err := os.ReadDir(filepath.Join(d.dataDir, "sessions"))
	if err != nil {
		return err
	}

	var indexes []*sessionIndex
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		session, err := d.loadSessionFile(id)
		if err != nil {
			continue
		}
		indexes = append(indexes, &sessionIndex{
			ID:        session.ID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}

	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].UpdatedAt.After(indexes[j].UpdatedAt)
	})

	return d.saveIndex(indexes)
}

func (d *DiskStorage) loadSessionFile(sessionID string) (*model.ChatSession, error) {
	data, err := os.ReadFile(filepath.Join(d.dataDir, "sessions", sessionID+".json"))
	if err != nil {
		return nil, err
	}

	var session model.ChatSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (d *DiskStorage) saveSessionFile(session *model.ChatSession) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dataDir, "sessions", session.ID+".json"), data, 0644)
}

func (d *DiskStorage) SaveAnalysis(analysis *model.FoodAnalysis) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dataDir, "analyses", analysis.ID+".json"), data, 0644)
}

func (d *DiskStorage) GetAnalysis(analysisID string) (*model.FoodAnalysis, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(d.dataDir, "analyses", analysisID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}

	var analysis model.FoodAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, err
	}

	return &analysis, nil
}

func (d *DiskStorage) CreateSession(session *model.ChatSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.saveSessionFile(session); err != nil {
		return err
	}

	d.cacheLocked(session)
	return d.rebuildIndexLocked()
}

func (d *DiskStorage) GetSession(sessionID string) (*model.ChatSession, error) {
	d.mu.RLock()
	if session, ok := d.cache[sessionID]; ok {
		d.mu.RUnlock()
		return session, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.loadSessionFile(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	d.cacheLocked(session)
	return session, nil
}

func (d *DiskStorage) UpdateSession(session *model.ChatSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.saveSessionFile(session); err != nil {
		return err
	}

	d.cacheLocked(session)
	return d.rebuildIndexLocked()
}

func (d *DiskStorage) ListSessions() ([]*model.ChatSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexPath := filepath.Join(d.dataDir, "sessions.json")
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, err
	}

	var indexes []*sessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return nil, err
	}

	sessions := make([]*model.ChatSession, 0, len(indexes))
	for _, index := range indexes {
		if session, ok := d.cache[index.ID]; ok {
			sessions = append(sessions, session)
			continue
		}
		session, err := d.loadSessionFile(index.ID)
		if err != nil {
			logger.Errorf("Failed to load session %s: %v", index.ID, err)
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (d *DiskStorage) AddMessage(sessionID string, message *model.StoredMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, ok := d.cache[sessionID]
	if !ok {
		loaded, err := d.loadSessionFile(sessionID)
		if err != nil {
			if os.IsNotExist(err) {
				return ErrSessionNotFound
			}
			return err
		}
		session = loaded
	}

	session.Messages = append(session.Messages, *message)
	session.UpdatedAt = time.Now()

	if err := d.saveSessionFile(session); err != nil {
		return err
	}

	d.cacheLocked(session)
	return nil
}

// cacheLocked 写入缓存，超出上限时随机淘汰一个旧条目
func (d *DiskStorage) cacheLocked(session *model.ChatSession) {
	if _, ok := d.cache[session.ID]; !ok && len(d.cache) >= d.cacheSize {
		for id := range d.cache {
			delete(d.cache, id)
			break
		}
	}
	d.cache[session.ID] = session
}
