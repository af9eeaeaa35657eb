package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileFormatVersion - версия формата файла обработанных логов
const fileFormatVersion = 1

// processedFile - содержимое файла: путь к логу → размер на момент обработки.
// Файлы без поля version (плоский JSON-объект) читаются как версия 0.
type processedFile struct {
	Version int              `json:"version"`
	Files   map[string]int64 `json:"files"`
}

// FileStore хранит список обработанных логов в локальном JSON-файле
type FileStore struct {
	Path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bs, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return make(map[string]int64), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read processed: %w", err)
	}
	if len(bs) == 0 {
		return make(map[string]int64), nil
	}
	return decodeProcessed(bs)
}

func decodeProcessed(bs []byte) (map[string]int64, error) {
	var doc processedFile
	if err := json.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("decode processed: %w", err)
	}
	switch doc.Version {
	case 0:
		legacy := make(map[string]int64)
		if err := json.Unmarshal(bs, &legacy); err != nil {
			return nil, fmt.Errorf("decode processed: %w", err)
		}
		return legacy, nil
	case fileFormatVersion:
		if doc.Files == nil {
			doc.Files = make(map[string]int64)
		}
		return doc.Files, nil
	default:
		return nil, fmt.Errorf("decode processed: unsupported version %d", doc.Version)
	}
}

// Save заменяет файл целиком: данные пишутся во временный файл в том же каталоге
// и переименовываются поверх старого только после fsync.
func (f *FileStore) Save(data map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	bs, err := json.MarshalIndent(processedFile{Version: fileFormatVersion, Files: data}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode processed: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write processed: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write processed: %w", err)
	}
	defer os.Remove(tmp.Name()) // после успешного Rename файла уже нет

	if _, err := tmp.Write(bs); err != nil {
		tmp.Close()
		return fmt.Errorf("write processed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync processed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write processed: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write processed: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("rename processed: %w", err)
	}
	return nil
}
