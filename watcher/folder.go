package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"markestedt/macroflow/platform"
)

// FolderWatcher writes the clipboard into every folder created below a root.
// Folders that exist when monitoring starts are never treated as new.
type FolderWatcher struct {
	root   string
	clip   platform.Clipboard
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	known      map[string]bool
	captured   int
	monitoring bool
	fsw        *fsnotify.Watcher
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewFolderWatcher creates a watcher for root
func NewFolderWatcher(root string, clip platform.Clipboard, logger *slog.Logger) *FolderWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderWatcher{
		root:   filepath.Clean(root),
		clip:   clip,
		logger: logger.With("component", "folder_watcher"),
		now:    time.Now,
	}
}

// Root returns the watched folder
func (w *FolderWatcher) Root() string {
	return w.root
}

// Monitoring reports whether filesystem events are being observed
func (w *FolderWatcher) Monitoring() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.monitoring
}

// Start snapshots the existing tree and observes it for new folders
func (w *FolderWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.monitoring {
		return ErrAlreadyMonitoring
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("failed to access folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a folder: %s", w.root)
	}

	if err := w.clip.Set(""); err != nil {
		w.logger.Warn("Failed to clear clipboard", "error", err)
	}

	dirs, err := listDirs(w.root)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}

	w.known = make(map[string]bool, len(dirs))
	for _, d := range dirs {
		w.known[d] = true
		if err := fsw.Add(d); err != nil {
			w.logger.Warn("Failed to watch folder", "path", d, "error", err)
		}
	}
	w.captured = 0

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.monitoring = true

	go w.loop(ctx, fsw, w.done)

	w.logger.Info("Folder monitoring started", "path", w.root, "existing", len(dirs)-1)
	return nil
}

// Stop ends observation, waiting at most one second for the loop to exit
func (w *FolderWatcher) Stop() {
	w.mu.Lock()
	if !w.monitoring {
		w.mu.Unlock()
		return
	}
	w.monitoring = false
	cancel, done, fsw := w.cancel, w.done, w.fsw
	w.fsw = nil
	w.mu.Unlock()

	cancel()
	if err := fsw.Close(); err != nil {
		w.logger.Warn("Failed to close fs watcher", "error", err)
	}

	select {
	case <-done:
	case <-time.After(stopTimeout):
		w.logger.Warn("Folder watcher did not stop in time")
	}

	w.logger.Info("Folder monitoring stopped", "path", w.root)
}

func (w *FolderWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				w.onCreate(fsw, ev.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Folder watcher error", "error", err)
		}
	}
}

func (w *FolderWatcher) onCreate(fsw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	// Nested folders may appear before the watch on their parent is added
	dirs, err := listDirs(path)
	if err != nil {
		w.logger.Warn("Failed to scan new folder", "path", path, "error", err)
		return
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			w.logger.Warn("Failed to watch folder", "path", d, "error", err)
		}
		w.handleNewFolder(d)
	}
}

// handleNewFolder writes the clipboard to <folder>/<name>.txt once per folder
func (w *FolderWatcher) handleNewFolder(folder string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.known == nil || w.known[folder] {
		return false
	}
	w.known[folder] = true

	text, err := w.clip.Get()
	if err != nil {
		w.logger.Error("Failed to read clipboard", "path", folder, "error", err)
		return false
	}
	if text == "" {
		w.logger.Warn("New folder detected but clipboard is empty", "path", folder)
		return false
	}

	file := filepath.Join(folder, filepath.Base(folder)+".txt")
	if err := os.WriteFile(file, []byte(text), 0644); err != nil {
		w.logger.Error("Failed to save clipboard to folder", "path", file, "error", err)
		return false
	}

	if err := w.clip.Set(""); err != nil {
		w.logger.Warn("Failed to clear clipboard", "error", err)
	}
	w.captured++

	w.logger.Info("Saved clipboard to new folder", "path", file, "length", len(text))
	w.logger.Debug("Clipboard preview", "text", shorten(text))
	return true
}

// CheckNewFolders rescans the tree and handles folders no event reported.
// It returns how many folders received the clipboard.
func (w *FolderWatcher) CheckNewFolders() (int, error) {
	if !w.Monitoring() {
		return 0, ErrNotMonitoring
	}

	dirs, err := listDirs(w.root)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, d := range dirs {
		if w.handleNewFolder(d) {
			n++
		}
	}
	return n, nil
}

// Capture handles pending new folders. When no folder was captured since
// the previous call the clipboard goes to a timestamped file in the root.
func (w *FolderWatcher) Capture() (int, error) {
	if _, err := w.CheckNewFolders(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	n := w.captured
	w.captured = 0
	w.mu.Unlock()

	if n > 0 {
		return n, nil
	}

	if _, err := w.SaveToParentFolder(); err != nil {
		return 0, err
	}
	return 0, nil
}

// SaveToParentFolder appends the clipboard to clipboard_YYYYMMDD_HHMMSS.txt
// in the root. It returns the file written, or "" when the clipboard is empty.
func (w *FolderWatcher) SaveToParentFolder() (string, error) {
	text, err := w.clip.Get()
	if err != nil {
		return "", err
	}
	if text == "" {
		w.logger.Warn("Clipboard is empty, nothing to save", "path", w.root)
		return "", nil
	}

	file := filepath.Join(w.root, fmt.Sprintf("clipboard_%s.txt", w.now().Format("20060102_150405")))
	if err := appendLine(file, text); err != nil {
		return "", err
	}

	if err := w.clip.Set(""); err != nil {
		w.logger.Warn("Failed to clear clipboard", "error", err)
	}

	w.logger.Info("Saved clipboard to folder", "path", file, "length", len(text))
	return file, nil
}

// listDirs returns root and every folder below it
func listDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Folders can vanish between the event and the walk
			if path != root && os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, filepath.Clean(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return dirs, nil
}
