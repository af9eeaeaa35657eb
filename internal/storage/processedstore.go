package storage

import (
	"fmt"

	"JMLogPump/internal/config"
)

// ProcessedStore - интерфейс для загрузки/сохранения списка обработанных файлов.
// Значение - размер файла в байтах на момент обработки.
type ProcessedStore interface {
	Load() (map[string]int64, error)
	Save(data map[string]int64) error
}

// Open выбирает хранилище по cfg.ProcessedStorage
func Open(cfg *config.Config) (ProcessedStore, error) {
	switch cfg.ProcessedStorage {
	case "redis":
		rs, err := NewRedisStore(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "file", "":
		return NewFileStore(cfg.ProcessedFile), nil
	}
	return nil, fmt.Errorf("unknown processed storage %q", cfg.ProcessedStorage)
}
