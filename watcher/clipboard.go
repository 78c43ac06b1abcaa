// Package watcher reacts to clipboard and filesystem changes by writing the
// clipboard to files.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"markestedt/macroflow/platform"
)

const (
	// DefaultPollInterval is how often the clipboard is sampled
	DefaultPollInterval = 500 * time.Millisecond
	stopTimeout         = time.Second
	previewLen          = 50
)

var (
	ErrAlreadyMonitoring = errors.New("already monitoring")
	ErrNotMonitoring     = errors.New("not monitoring")
	ErrNoOutputFile      = errors.New("no output file configured")
)

// ClipboardWatcher appends every new clipboard text to an output file and
// clears the clipboard after each capture.
type ClipboardWatcher struct {
	clip       platform.Clipboard
	outputFile string
	interval   time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	last       string
	monitoring bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewClipboardWatcher creates a watcher writing to outputFile
func NewClipboardWatcher(clip platform.Clipboard, outputFile string, logger *slog.Logger) *ClipboardWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipboardWatcher{
		clip:       clip,
		outputFile: outputFile,
		interval:   DefaultPollInterval,
		logger:     logger.With("component", "clipboard_watcher"),
	}
}

// SetInterval changes the poll interval. It takes effect on the next Start.
func (w *ClipboardWatcher) SetInterval(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d > 0 {
		w.interval = d
	}
}

// OutputFile returns the file captures are appended to
func (w *ClipboardWatcher) OutputFile() string {
	return w.outputFile
}

// Monitoring reports whether the poll loop is running
func (w *ClipboardWatcher) Monitoring() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.monitoring
}

// Start clears the clipboard and begins polling until Stop or ctx is done
func (w *ClipboardWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.monitoring {
		return ErrAlreadyMonitoring
	}
	if w.outputFile == "" {
		return ErrNoOutputFile
	}
	if err := os.MkdirAll(filepath.Dir(w.outputFile), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.clip.Set(""); err != nil {
		w.logger.Warn("Failed to clear clipboard", "error", err)
	}
	w.last = ""

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.monitoring = true

	go w.loop(ctx, w.interval, w.done)

	w.logger.Info("Clipboard monitoring started", "file", w.outputFile)
	return nil
}

// Stop ends the poll loop, waiting at most one second for it to exit
func (w *ClipboardWatcher) Stop() {
	w.mu.Lock()
	if !w.monitoring {
		w.mu.Unlock()
		return
	}
	w.monitoring = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		w.logger.Warn("Clipboard watcher did not stop in time")
	}

	w.logger.Info("Clipboard monitoring stopped")
}

func (w *ClipboardWatcher) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.done == done {
				w.monitoring = false
			}
			w.mu.Unlock()
			return
		case <-ticker.C:
			if _, err := w.Capture(); err != nil {
				w.logger.Error("Clipboard capture failed", "error", err)
			}
		}
	}
}

// Capture performs one poll step. It reports whether new content was written.
func (w *ClipboardWatcher) Capture() (bool, error) {
	if w.outputFile == "" {
		return false, ErrNoOutputFile
	}

	text, err := w.clip.Get()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if text == "" || text == w.last {
		return false, nil
	}

	w.logger.Info("New clipboard content", "length", len(text), "preview", shorten(text))

	if err := appendLine(w.outputFile, text); err != nil {
		return false, err
	}
	w.last = text

	if err := w.clip.Set(""); err != nil {
		w.logger.Warn("Failed to clear clipboard", "error", err)
	}
	return true, nil
}

func appendLine(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func shorten(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "..."
}
