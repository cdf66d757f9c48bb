package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
)

func newTestWatcher(t *testing.T, timeout time.Duration) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()
	w, err := New(root, timeout, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, root
}

func TestDebounceCoalescesPerPath(t *testing.T) {
	w := &Watcher{timeout: time.Hour, log: logging.NewNop(), pending: make(map[string]*pending)}
	root := t.TempDir()
	a := filepath.Join(root, "a.js")
	b := filepath.Join(root, "b.js")
	now := time.Now()

	w.handle(fsnotify.Event{Name: a, Op: fsnotify.Create}, now)
	w.handle(fsnotify.Event{Name: b, Op: fsnotify.Write}, now.Add(time.Millisecond))
	w.handle(fsnotify.Event{Name: a, Op: fsnotify.Write}, now.Add(2*time.Millisecond))
	w.handle(fsnotify.Event{Name: b, Op: fsnotify.Remove}, now.Add(3*time.Millisecond))
	w.handle(fsnotify.Event{Name: a, Op: fsnotify.Chmod}, now.Add(4*time.Millisecond))

	assert.Empty(t, w.flush(now.Add(30*time.Minute)))

	events := w.flush(now.Add(2 * time.Hour))
	assert.Equal(t, []Event{
		{Op: Change, Path: a},
		{Op: Delete, Path: b},
	}, events)
	assert.Empty(t, w.pending)
}

func TestWatcherEmitsEvents(t *testing.T) {
	w, root := newTestWatcher(t, 20*time.Millisecond)

	file := filepath.Join(root, "lib.js")
	require.NoError(t, os.WriteFile(file, []byte("1"), 0o644))

	ev := next(t, w)
	assert.Equal(t, Event{Op: Change, Path: file}, ev)

	require.NoError(t, os.Remove(file))
	ev = next(t, w)
	assert.Equal(t, Event{Op: Delete, Path: file}, ev)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	w, root := newTestWatcher(t, 20*time.Millisecond)

	dir := filepath.Join(root, "domain")
	require.NoError(t, os.Mkdir(dir, 0o755))
	ev := next(t, w)
	assert.Equal(t, Event{Op: Change, Path: dir}, ev)

	file := filepath.Join(dir, "jobs.js")
	require.NoError(t, os.WriteFile(file, []byte("1"), 0o644))
	ev = next(t, w)
	assert.Equal(t, Event{Op: Change, Path: file}, ev)
}

func TestWatcherClose(t *testing.T) {
	w, _ := newTestWatcher(t, 10*time.Millisecond)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "change", Change.String())
	assert.Equal(t, "delete", Delete.String())
	assert.Equal(t, "unknown", Op(0).String())
}

func next(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
