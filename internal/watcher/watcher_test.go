package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"JMLogPump/internal/storage"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return r.err
}

func (r *recorder) handled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTestWatcher(t *testing.T, dir string, rec *recorder) (*Watcher, *storage.FileStore) {
	t.Helper()
	st := storage.NewFileStore(filepath.Join(t.TempDir(), "processed.json"))
	w := New(Config{
		Dirs:           []string{dir},
		Patterns:       []string{"*.jtl", "*.xml"},
		RescanInterval: 20 * time.Millisecond,
		SettleInterval: 20 * time.Millisecond,
		Logger:         zap.NewNop(),
		Store:          st,
		Handle:         rec.handle,
	})
	return w, st
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestScanAndSettle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "run.jtl"), "timeStamp,elapsed\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "skip me")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested", "b.xml"), "<?xml")

	rec := &recorder{}
	w, st := newTestWatcher(t, dir, rec)

	w.scan()
	w.settle(context.Background())

	assert.Equal(t, []string{
		filepath.Join(dir, "nested", "b.xml"),
		filepath.Join(dir, "run.jtl"),
	}, rec.handled())

	saved, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(len("timeStamp,elapsed\n")), saved[filepath.Join(dir, "run.jtl")])

	// повторное сканирование не ставит файлы в очередь снова
	w.scan()
	w.settle(context.Background())
	assert.Len(t, rec.handled(), 2)
}

func TestSettle_WaitsForGrowingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.jtl")
	writeFile(t, path, "a")

	rec := &recorder{}
	w, _ := newTestWatcher(t, dir, rec)
	w.scan()

	writeFile(t, path, "abc")
	w.settle(context.Background())
	assert.Empty(t, rec.handled())

	w.settle(context.Background())
	assert.Equal(t, []string{path}, rec.handled())
}

func TestSettle_SkipsEmptyAndRemoved(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.jtl")
	gone := filepath.Join(dir, "gone.jtl")
	writeFile(t, empty, "")
	writeFile(t, gone, "x")

	rec := &recorder{}
	w, _ := newTestWatcher(t, dir, rec)
	w.scan()
	require.NoError(t, os.Remove(gone))

	w.settle(context.Background())
	w.settle(context.Background())
	assert.Empty(t, rec.handled())
	assert.Contains(t, w.pending, empty)
	assert.NotContains(t, w.pending, gone)
}

func TestSettle_FailedFileIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.jtl"), "garbage")

	rec := &recorder{err: errors.New("parse failed")}
	w, _ := newTestWatcher(t, dir, rec)
	w.scan()
	w.settle(context.Background())
	w.scan()
	w.settle(context.Background())

	assert.Len(t, rec.handled(), 1)
}

func TestSettle_CancelledFileIsNotRecorded(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.jtl")
	second := filepath.Join(dir, "b.jtl")
	writeFile(t, first, "first")
	writeFile(t, second, "second")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled []string
	st := storage.NewFileStore(filepath.Join(t.TempDir(), "processed.json"))
	w := New(Config{
		Dirs:     []string{dir},
		Patterns: []string{"*.jtl"},
		Logger:   zap.NewNop(),
		Store:    st,
		Handle: func(ctx context.Context, path string) error {
			handled = append(handled, path)
			cancel()
			return ctx.Err()
		},
	})

	w.scan()
	w.settle(ctx)

	assert.Equal(t, []string{first}, handled)
	assert.NotContains(t, w.processed, first)
	assert.Contains(t, w.pending, first)
	assert.Contains(t, w.pending, second)

	saved, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestSettle_ReprocessesChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.jtl")
	writeFile(t, path, "first")

	rec := &recorder{}
	w, _ := newTestWatcher(t, dir, rec)
	w.scan()
	w.settle(context.Background())

	writeFile(t, path, "first and more")
	w.scan()
	w.settle(context.Background())
	assert.Equal(t, []string{path, path}, rec.handled())
}

func TestStart_PicksUpNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w, _ := newTestWatcher(t, dir, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	path := filepath.Join(dir, "late.jtl")
	writeFile(t, path, "timeStamp\n1\n")

	require.Eventually(t, func() bool { return len(rec.handled()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{path}, rec.handled())
}
