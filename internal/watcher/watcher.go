package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"JMLogPump/internal/storage"
)

// Handler обрабатывает завершённый файл лога
type Handler func(ctx context.Context, path string) error

type Config struct {
	Dirs           []string
	Patterns       []string
	RescanInterval time.Duration
	SettleInterval time.Duration // сколько размер файла должен оставаться неизменным
	Logger         *zap.Logger
	Store          storage.ProcessedStore
	Handle         Handler
}

// Watcher следит за каталогами и передаёт обработчику файлы,
// которые перестали расти. Каждый файл обрабатывается один раз
// на каждый новый размер.
type Watcher struct {
	cfg         Config
	processed   map[string]int64
	pending     map[string]int64 // путь → размер при последней проверке
	watchedDirs map[string]struct{}
	mu          sync.Mutex
}

func New(cfg Config) *Watcher {
	processed, err := cfg.Store.Load()
	if err != nil {
		cfg.Logger.Error("Не удалось загрузить список обработанных файлов", zap.Error(err))
		processed = make(map[string]int64)
	}
	return &Watcher{
		cfg:         cfg,
		processed:   processed,
		pending:     make(map[string]int64),
		watchedDirs: make(map[string]struct{}),
	}
}

// addWatchers рекурсивно добавляет наблюдателей для директорий
func (w *Watcher) addWatchers(dir string, dw *fsnotify.Watcher) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.cfg.Logger.Debug("Ошибка при обходе директории", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, exists := w.watchedDirs[path]; exists {
			return nil
		}
		if err := dw.Add(path); err != nil {
			w.cfg.Logger.Error("Ошибка добавления наблюдателя", zap.String("dir", path), zap.Error(err))
			return nil
		}
		w.watchedDirs[path] = struct{}{}
		w.cfg.Logger.Debug("Добавлен наблюдатель для директории", zap.String("dir", path))
		return nil
	})
}

// Start блокируется до отмены ctx
func (w *Watcher) Start(ctx context.Context) error {
	dw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer dw.Close()

	for _, dir := range w.cfg.Dirs {
		if err := w.addWatchers(dir, dw); err != nil {
			w.cfg.Logger.Debug("Ошибка при добавлении наблюдателей", zap.String("dir", dir), zap.Error(err))
		}
	}

	// Начальное сканирование
	w.scan()

	rescan := time.NewTicker(w.cfg.RescanInterval)
	defer rescan.Stop()
	settle := time.NewTicker(w.cfg.SettleInterval)
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			w.cfg.Logger.Info("Watcher остановлен по сигналу shutdown")
			w.save()
			return nil
		case ev, ok := <-dw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev, dw)
		case err, ok := <-dw.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Error("Ошибка watcher для каталогов", zap.Error(err))
		case <-rescan.C:
			w.cfg.Logger.Debug("Запуск периодического сканирования директорий")
			w.scan()
		case <-settle.C:
			w.settle(ctx)
		}
	}
}

func (w *Watcher) save() {
	w.mu.Lock()
	snapshot := make(map[string]int64, len(w.processed))
	for k, v := range w.processed {
		snapshot[k] = v
	}
	w.mu.Unlock()
	if err := w.cfg.Store.Save(snapshot); err != nil {
		w.cfg.Logger.Error("Не удалось сохранить список обработанных файлов", zap.Error(err))
	}
}
