//go:build !windows

package platform

import (
	"context"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// HookHotkey implements the Hotkey interface on top of gohook's global event stream
type HookHotkey struct {
	mu      sync.Mutex
	combo   KeyCombo
	mods    KeyCombo
	pressed bool
	events  chan Event
}

// NewHotkey creates a new global hotkey listener
func NewHotkey() Hotkey {
	return &HookHotkey{}
}

// Listen starts the hook and reports combo presses until ctx is done
func (h *HookHotkey) Listen(ctx context.Context, combo KeyCombo) (<-chan Event, error) {
	h.mu.Lock()
	h.combo = combo
	h.mods = KeyCombo{}
	h.pressed = false
	h.events = make(chan Event, 10)
	events := h.events
	h.mu.Unlock()

	evChan := hook.Start()

	go func() {
		defer hook.End()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					return
				}
				h.handle(ev)
			}
		}
	}()

	return events, nil
}

func (h *HookHotkey) handle(ev hook.Event) {
	var down bool
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		down = true
	case hook.KeyUp:
		down = false
	default:
		return
	}

	name := KeyName(ev)
	if name == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.trackModifier(name, down) && h.combo.Key != "" {
		return
	}

	if h.combo.Key != "" && name != h.combo.Key {
		return
	}

	switch {
	case down && !h.pressed && h.modifiersMatch():
		h.pressed = true
		h.emit(Pressed)
	case !down && h.pressed:
		h.pressed = false
		h.emit(Released)
	}
}

// trackModifier records modifier state and reports whether name was a modifier
func (h *HookHotkey) trackModifier(name string, down bool) bool {
	switch {
	case strings.Contains(name, "ctrl") || strings.Contains(name, "control"):
		h.mods.Ctrl = down
	case strings.Contains(name, "shift"):
		h.mods.Shift = down
	case strings.Contains(name, "alt") || strings.Contains(name, "option"):
		h.mods.Alt = down
	case strings.Contains(name, "cmd") || strings.Contains(name, "command") || strings.Contains(name, "super"):
		h.mods.Win = down
	default:
		return false
	}
	return true
}

func (h *HookHotkey) modifiersMatch() bool {
	return h.mods.Ctrl == h.combo.Ctrl &&
		h.mods.Shift == h.combo.Shift &&
		h.mods.Alt == h.combo.Alt &&
		h.mods.Win == h.combo.Win
}

func (h *HookHotkey) emit(t EventType) {
	select {
	case h.events <- Event{Type: t}:
	default:
	}
}

// KeyName converts a hook event into a lowercase key name such as "a" or "f12"
func KeyName(ev hook.Event) string {
	// Keychar is the most reliable source for printable characters
	if ev.Keychar != 0 && ev.Keychar != hook.CharUndefined && ev.Keychar > ' ' {
		return strings.ToLower(string(ev.Keychar))
	}

	s := strings.ToLower(hook.RawcodetoKeychar(ev.Rawcode))
	switch s {
	case "", "undefined":
		return ""
	case " ":
		return "space"
	}
	return s
}
