package watch

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
)

type reloadLog struct {
	mu    sync.Mutex
	paths []string
}

func (r *reloadLog) record(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func (r *reloadLog) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher not ready")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "threads.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threads: []\n"), 0o644))

	log := &reloadLog{}
	w, err := New(log.record, []string{path}, WithDebounce(100*time.Millisecond))
	require.NoError(t, err)
	startWatcher(t, w)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("threads: []\n"), 0o644))
	}
	require.Eventually(t, func() bool { return len(log.snapshot()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, []string{path}, log.snapshot())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "threads.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threads: []\n"), 0o644))

	log := &reloadLog{}
	w, err := New(log.record, []string{path}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, log.snapshot())
}

func TestWatcherSurvivesReloadErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "threads.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threads: []\n"), 0o644))

	var mu sync.Mutex
	calls := 0
	reload := func(context.Context, string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("broken configuration")
	}
	w, err := New(reload, []string{path}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	startWatcher(t, w)

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	require.Eventually(t, func() bool { return count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	require.Eventually(t, func() bool { return count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, []string{"threads.yaml"})
	assert.Error(t, err)
	_, err = New(func(context.Context, string) error { return nil }, nil)
	assert.Error(t, err)
}
