package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// handleEvent обрабатывает fsnotify события в папках
func (w *Watcher) handleEvent(ev fsnotify.Event, dw *fsnotify.Watcher) {
	if ev.Op&fsnotify.Remove != 0 {
		w.mu.Lock()
		delete(w.pending, ev.Name)
		w.mu.Unlock()
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if err := w.addWatchers(ev.Name, dw); err != nil {
			w.cfg.Logger.Debug("Ошибка при добавлении наблюдателей", zap.String("dir", ev.Name), zap.Error(err))
		}
		w.scanDir(ev.Name)
		return
	}
	if w.matches(ev.Name) {
		w.markPending(ev.Name, info.Size())
	}
}

func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	for _, p := range w.cfg.Patterns {
		if ok, err := filepath.Match(p, base); err == nil && ok {
			return true
		}
	}
	return false
}

// markPending ставит файл в очередь, если он новый или изменил размер после обработки
func (w *Watcher) markPending(path string, size int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if done, ok := w.processed[path]; ok && done == size {
		return
	}
	if _, ok := w.pending[path]; !ok {
		w.cfg.Logger.Debug("Файл ожидает завершения записи", zap.String("file", path))
		w.pending[path] = size
	}
}

// scan обходит все каталоги в поисках необработанных файлов
func (w *Watcher) scan() {
	for _, dir := range w.cfg.Dirs {
		w.scanDir(dir)
	}
}

func (w *Watcher) scanDir(dir string) {
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if w.matches(path) {
			w.markPending(path, info.Size())
		}
		return nil
	})
}

// settle передаёт обработчику файлы, размер которых не изменился с прошлой проверки
func (w *Watcher) settle(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.mu.Unlock()
	sort.Strings(paths)

	changed := false
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		info, err := os.Stat(path)
		if err != nil {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
			continue
		}
		size := info.Size()

		w.mu.Lock()
		last := w.pending[path]
		if size != last || size == 0 {
			w.pending[path] = size
			w.mu.Unlock()
			continue
		}
		delete(w.pending, path)
		w.mu.Unlock()

		w.cfg.Logger.Info("Обрабатываем файл", zap.String("file", path), zap.Int64("size", size))
		err = w.cfg.Handle(ctx, path)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			// прерванный файл не считается обработанным и будет взят после перезапуска
			w.mu.Lock()
			w.pending[path] = size
			w.mu.Unlock()
			w.cfg.Logger.Info("Обработка файла прервана", zap.String("file", path))
			break
		}
		if err != nil {
			w.cfg.Logger.Error("Ошибка обработки файла", zap.String("file", path), zap.Error(err))
		}

		w.mu.Lock()
		w.processed[path] = size
		w.mu.Unlock()
		changed = true
	}
	if changed {
		w.save()
	}
}
