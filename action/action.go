// Package action defines the closed set of macro steps and their shared
// execute, describe and serialize contract.
package action

import (
	"context"
	"errors"
	"log/slog"

	"markestedt/macroflow/platform"
)

// Kind is the wire tag of an action variant.
type Kind string

const (
	KindMoveCursor       Kind = "mouse_move"
	KindClick            Kind = "mouse_click"
	KindDragDrop         Kind = "drag_drop"
	KindTypeText         Kind = "keyboard_input"
	KindHotkeyCombo      Kind = "key_combination"
	KindTextListCycle    Kind = "text_list"
	KindDelay            Kind = "delay"
	KindClipboardCapture Kind = "clipboard_capture"
	KindFolderCapture    Kind = "folder_capture"
)

// Kinds lists every action kind in editor order.
var Kinds = []Kind{
	KindMoveCursor,
	KindClick,
	KindDragDrop,
	KindTypeText,
	KindHotkeyCombo,
	KindTextListCycle,
	KindDelay,
	KindClipboardCapture,
	KindFolderCapture,
}

var (
	// ErrUnknownKind is returned when decoding an unrecognized type tag.
	ErrUnknownKind = errors.New("unknown action type")
	// ErrEmptyList is returned by a text list with no items.
	ErrEmptyList = errors.New("text list is empty")
	// ErrNoCapturer is returned when a capture action runs without its watcher.
	ErrNoCapturer = errors.New("no capturer configured")
)

// Action is one macro step. The set of implementations is closed.
type Action interface {
	Kind() Kind
	// Label is the display name, falling back to a per-kind default.
	Label() string
	Describe() string
	Execute(ctx context.Context, env *Env) error

	sealed()
}

// Starter is implemented by actions that hold per-run state.
type Starter interface {
	Begin(ctx context.Context, env *Env) error
	End(env *Env)
}

// ClipboardCapturer appends new clipboard content to a file.
type ClipboardCapturer interface {
	CaptureClipboard(ctx context.Context, outputFile string) (bool, error)
}

// FolderCapturer writes clipboard content into newly created folders.
type FolderCapturer interface {
	WatchFolder(ctx context.Context, folder string) error
	UnwatchFolder(folder string)
	CaptureFolder(ctx context.Context, folder string) (int, error)
}

// Env carries the side-effect seams an action may touch.
type Env struct {
	Input     platform.Input
	Clipboard platform.Clipboard
	Paster    platform.Paster
	Clips     ClipboardCapturer
	Folders   FolderCapturer
	Logger    *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Run executes a and reports success. Failures and panics are logged and
// never escape to the caller.
func Run(ctx context.Context, a Action, env *Env) (ok bool) {
	logger := env.logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Action panicked", "action", a.Label(), "kind", a.Kind(), "panic", r)
			ok = false
		}
	}()

	logger.Debug("Executing action", "action", a.Label(), "kind", a.Kind())

	err := a.Execute(ctx, env)
	if err == nil {
		return true
	}

	// Interrupted waits are a stop request, not a failure
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Debug("Action interrupted", "action", a.Label())
		return true
	}

	logger.Error("Action failed", "action", a.Label(), "kind", a.Kind(), "error", err)
	return false
}

// Reset rewinds per-run state of every action that has any.
func Reset(actions []Action) {
	for _, a := range actions {
		if tl, ok := a.(*TextListCycle); ok {
			tl.Reset()
		}
	}
}

// DefaultName returns the display name used when an action has none.
func DefaultName(k Kind) string {
	switch k {
	case KindMoveCursor:
		return "Mouse move"
	case KindClick:
		return "Mouse click"
	case KindDragDrop:
		return "Drag & drop"
	case KindTypeText:
		return "Keyboard input"
	case KindHotkeyCombo:
		return "Key combination"
	case KindTextListCycle:
		return "Text list input"
	case KindDelay:
		return "Delay"
	case KindClipboardCapture:
		return "Clipboard capture"
	case KindFolderCapture:
		return "Folder capture"
	default:
		return string(k)
	}
}

func label(name string, k Kind) string {
	if name != "" {
		return name
	}
	return DefaultName(k)
}

// preview shortens text for descriptions and log lines
func preview(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
