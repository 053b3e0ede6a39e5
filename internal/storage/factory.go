package storage

import (
	"nutrimind/internal/config"
	"nutrimind/pkg/logger"
)

// New 按配置选择存储实现，磁盘存储初始化失败时回退到内存存储
func New(cfg *config.StorageConfig) Storage {
	var store Storage

	if cfg.Type == "disk" {
		store = NewDiskStorage(cfg.DataDir, cfg.CacheSize)
	} else {
		store = NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage: %v", err)
		store = NewMemoryStorage()
		store.Init()
	}

	return store
}
