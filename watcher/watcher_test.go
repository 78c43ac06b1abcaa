package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *memClipboard) Get() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

func (c *memClipboard) Set(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

func (c *memClipboard) value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestClipboardCaptureAppendsAndClears(t *testing.T) {
	clip := &memClipboard{}
	out := filepath.Join(t.TempDir(), "out.txt")
	w := NewClipboardWatcher(clip, out, nil)

	clip.Set("first")
	ok, err := w.Capture()
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, clip.value())

	ok, err = w.Capture()
	require.NoError(t, err)
	require.False(t, ok, "empty clipboard is not captured")

	clip.Set("first")
	ok, err = w.Capture()
	require.NoError(t, err)
	require.False(t, ok, "repeated content is not captured")

	clip.Set("second")
	ok, err = w.Capture()
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, "first\nsecond\n", readFile(t, out))
}

func TestClipboardWatcherPolls(t *testing.T) {
	clip := &memClipboard{text: "stale"}
	out := filepath.Join(t.TempDir(), "nested", "out.txt")
	w := NewClipboardWatcher(clip, out, nil)
	w.SetInterval(10 * time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.True(t, w.Monitoring())
	require.ErrorIs(t, w.Start(context.Background()), ErrAlreadyMonitoring)

	clip.Set("copied")
	waitUntil(t, 2*time.Second, func() bool {
		data, _ := os.ReadFile(out)
		return string(data) == "copied\n"
	}, "clipboard content written")

	w.Stop()
	require.False(t, w.Monitoring())
}

func TestClipboardWatcherNeedsOutputFile(t *testing.T) {
	w := NewClipboardWatcher(&memClipboard{}, "", nil)
	require.ErrorIs(t, w.Start(context.Background()), ErrNoOutputFile)
}

func TestFolderWatcherIgnoresExistingFolders(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "old", "deeper"), 0755))

	clip := &memClipboard{text: "before start"}
	w := NewFolderWatcher(root, clip, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Empty(t, clip.value(), "start clears the clipboard")

	n, err := w.CheckNewFolders()
	require.NoError(t, err)
	require.Zero(t, n)

	clip.Set("payload")
	newDir := filepath.Join(root, "new")
	require.NoError(t, os.Mkdir(newDir, 0755))

	target := filepath.Join(newDir, "new.txt")
	waitUntil(t, 2*time.Second, func() bool {
		w.CheckNewFolders()
		_, err := os.Stat(target)
		return err == nil
	}, "new folder captured")

	require.Equal(t, "payload", readFile(t, target))
	require.Empty(t, clip.value())

	_, err = os.Stat(filepath.Join(root, "old", "old.txt"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "old", "deeper", "deeper.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestFolderWatcherCaptureCountsNewFolders(t *testing.T) {
	root := t.TempDir()
	clip := &memClipboard{}
	w := NewFolderWatcher(root, clip, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	clip.Set("report")
	require.NoError(t, os.Mkdir(filepath.Join(root, "job1"), 0755))

	n, err := w.Capture()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "report", readFile(t, filepath.Join(root, "job1", "job1.txt")))
}

func TestFolderWatcherCaptureFallsBackToRoot(t *testing.T) {
	root := t.TempDir()
	clip := &memClipboard{}
	w := NewFolderWatcher(root, clip, nil)
	w.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local) }

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	clip.Set("loose text")
	n, err := w.Capture()
	require.NoError(t, err)
	require.Zero(t, n)

	require.Equal(t, "loose text\n", readFile(t, filepath.Join(root, "clipboard_20240305_140709.txt")))
	require.Empty(t, clip.value())
}

func TestFolderWatcherRejectsMissingRoot(t *testing.T) {
	w := NewFolderWatcher(filepath.Join(t.TempDir(), "missing"), &memClipboard{}, nil)
	require.Error(t, w.Start(context.Background()))

	_, err := w.Capture()
	require.ErrorIs(t, err, ErrNotMonitoring)
}

func TestRegistrySharesFolderWatchers(t *testing.T) {
	root := t.TempDir()
	clip := &memClipboard{}
	r := NewRegistry(clip, nil)
	defer r.Close()
	ctx := context.Background()

	_, err := r.CaptureFolder(ctx, root)
	require.ErrorIs(t, err, ErrNotMonitoring)

	require.NoError(t, r.WatchFolder(ctx, root))
	require.NoError(t, r.WatchFolder(ctx, root))

	r.UnwatchFolder(root)
	clip.Set("still watched")
	_, err = r.CaptureFolder(ctx, root)
	require.NoError(t, err)

	r.UnwatchFolder(root)
	_, err = r.CaptureFolder(ctx, root)
	require.ErrorIs(t, err, ErrNotMonitoring)
}

func TestRegistryCaptureClipboard(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.txt")
	clip := &memClipboard{text: "line"}
	r := NewRegistry(clip, nil)

	ok, err := r.CaptureClipboard(context.Background(), out)
	require.NoError(t, err)
	require.True(t, ok)

	clip.Set("line")
	ok, err = r.CaptureClipboard(context.Background(), out)
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, "line\n", readFile(t, out))
}

func TestRegistryCaptureClipboardCreatesDirectories(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a", "b", "out.txt")
	clip := &memClipboard{text: "nested"}
	r := NewRegistry(clip, nil)

	ok, err := r.CaptureClipboard(context.Background(), out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "nested\n", readFile(t, out))
	require.Empty(t, clip.value())
}
