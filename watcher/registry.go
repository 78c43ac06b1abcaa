package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"markestedt/macroflow/action"
	"markestedt/macroflow/platform"
)

var (
	_ action.ClipboardCapturer = (*Registry)(nil)
	_ action.FolderCapturer    = (*Registry)(nil)
)

// Registry lends one watcher per path to capture actions
type Registry struct {
	clip   platform.Clipboard
	logger *slog.Logger

	mu      sync.Mutex
	clips   map[string]*ClipboardWatcher
	folders map[string]*FolderWatcher
	refs    map[string]int
}

// NewRegistry creates an empty registry
func NewRegistry(clip platform.Clipboard, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clip:    clip,
		logger:  logger,
		clips:   make(map[string]*ClipboardWatcher),
		folders: make(map[string]*FolderWatcher),
		refs:    make(map[string]int),
	}
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// CaptureClipboard appends new clipboard content to outputFile
func (r *Registry) CaptureClipboard(ctx context.Context, outputFile string) (bool, error) {
	if outputFile == "" {
		return false, ErrNoOutputFile
	}

	k := key(outputFile)

	r.mu.Lock()
	w, ok := r.clips[k]
	if !ok {
		w = NewClipboardWatcher(r.clip, k, r.logger)
		r.clips[k] = w
	}
	r.mu.Unlock()

	return w.Capture()
}

// WatchFolder starts observing folder, sharing the watcher between callers
func (r *Registry) WatchFolder(ctx context.Context, folder string) error {
	k := key(folder)

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.folders[k]
	if !ok {
		w = NewFolderWatcher(k, r.clip, r.logger)
		r.folders[k] = w
	}

	if !w.Monitoring() {
		if err := w.Start(ctx); err != nil {
			return err
		}
		r.refs[k] = 0
	}
	r.refs[k]++
	return nil
}

// UnwatchFolder releases one WatchFolder call and stops the last one
func (r *Registry) UnwatchFolder(folder string) {
	k := key(folder)

	r.mu.Lock()
	w, ok := r.folders[k]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.refs[k]--
	last := r.refs[k] <= 0
	if last {
		delete(r.refs, k)
	}
	r.mu.Unlock()

	if last {
		w.Stop()
	}
}

// CaptureFolder runs one capture step on a watched folder
func (r *Registry) CaptureFolder(ctx context.Context, folder string) (int, error) {
	k := key(folder)

	r.mu.Lock()
	w, ok := r.folders[k]
	r.mu.Unlock()

	if !ok || !w.Monitoring() {
		return 0, fmt.Errorf("%w: %s", ErrNotMonitoring, folder)
	}
	return w.Capture()
}

// Close stops every watcher the registry started
func (r *Registry) Close() {
	r.mu.Lock()
	folders := make([]*FolderWatcher, 0, len(r.folders))
	for _, w := range r.folders {
		folders = append(folders, w)
	}
	r.refs = make(map[string]int)
	r.mu.Unlock()

	for _, w := range folders {
		w.Stop()
	}
}
