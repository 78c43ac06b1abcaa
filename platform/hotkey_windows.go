//go:build windows

package platform

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	getMessageW         = user32.NewProc("GetMessageW")
	postThreadMessageW  = user32.NewProc("PostThreadMessageW")
	getAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	getCurrentThreadID  = kernel32.NewProc("GetCurrentThreadId")
)

const (
	whKeyboardLL = 13
	wmKeydown    = 0x0100
	wmSyskeydown = 0x0104
	wmQuit       = 0x0012
)

const (
	vkShift = 0x10
	vkCtrl  = 0x11
	vkAlt   = 0x12
	vkLwin  = 0x5B
	vkRwin  = 0x5C
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// WindowsHotkey implements the Hotkey interface with a low-level keyboard hook
type WindowsHotkey struct {
	mu      sync.Mutex
	combo   KeyCombo
	vk      uint32
	pressed bool
	events  chan Event
}

// NewHotkey creates a new Windows hotkey listener
func NewHotkey() Hotkey {
	return &WindowsHotkey{}
}

// Listen installs the hook and reports combo presses until ctx is done
func (h *WindowsHotkey) Listen(ctx context.Context, combo KeyCombo) (<-chan Event, error) {
	vk, err := VKCode(combo.Key)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.combo = combo
	h.vk = uint32(vk)
	h.pressed = false
	h.events = make(chan Event, 10)
	events := h.events
	h.mu.Unlock()

	ready := make(chan hookThread, 1)
	go h.runHook(ready)

	var ht hookThread
	select {
	case ht = <-ready:
		if ht.err != nil {
			return nil, ht.err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The message loop exits on WM_QUIT and unhooks on its own thread
	go func() {
		<-ctx.Done()
		postThreadMessageW.Call(ht.threadID, wmQuit, 0, 0)
	}()

	return events, nil
}

type hookThread struct {
	threadID uintptr
	err      error
}

func (h *WindowsHotkey) runHook(ready chan<- hookThread) {
	// Low-level hooks are delivered to the installing thread's message loop
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	threadID, _, _ := getCurrentThreadID.Call()

	hookProc := func(nCode, wParam, lParam uintptr) uintptr {
		if int32(nCode) >= 0 {
			kbInfo := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			h.handleKeyEvent(wParam, kbInfo)
		}
		r, _, _ := callNextHookEx.Call(0, nCode, wParam, lParam)
		return r
	}

	hook, _, err := setWindowsHookEx.Call(whKeyboardLL, windows.NewCallback(hookProc), 0, 0)
	if hook == 0 {
		ready <- hookThread{err: fmt.Errorf("SetWindowsHookEx failed: %w", err)}
		return
	}
	defer unhookWindowsHookEx.Call(hook)

	ready <- hookThread{threadID: threadID}

	var m msg
	for {
		r, _, _ := getMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 is WM_QUIT, -1 is an error; both end the loop
		if int32(r) <= 0 {
			return
		}
	}
}

func (h *WindowsHotkey) handleKeyEvent(wParam uintptr, kbInfo *kbdllhookstruct) {
	isKeyDown := wParam == wmKeydown || wParam == wmSyskeydown

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.isComboKey(kbInfo.vkCode) {
		return
	}

	switch {
	case isKeyDown && !h.pressed && h.checkModifiers():
		h.pressed = true
		h.emit(Pressed)
	case !isKeyDown && h.pressed:
		h.pressed = false
		h.emit(Released)
	}
}

// isComboKey reports whether vk drives this combo. Modifier-only combos
// are driven by their modifier keys.
func (h *WindowsHotkey) isComboKey(vk uint32) bool {
	if h.vk != 0 {
		return vk == h.vk
	}
	switch vk {
	case vkCtrl, 0xA2, 0xA3:
		return h.combo.Ctrl
	case vkShift, 0xA0, 0xA1:
		return h.combo.Shift
	case vkAlt, 0xA4, 0xA5:
		return h.combo.Alt
	case vkLwin, vkRwin:
		return h.combo.Win
	}
	return false
}

func (h *WindowsHotkey) emit(t EventType) {
	select {
	case h.events <- Event{Type: t}:
	default:
	}
}

func (h *WindowsHotkey) checkModifiers() bool {
	ctrl := isKeyPressed(vkCtrl)
	shift := isKeyPressed(vkShift)
	alt := isKeyPressed(vkAlt)
	win := isKeyPressed(vkLwin) || isKeyPressed(vkRwin)

	return ctrl == h.combo.Ctrl &&
		shift == h.combo.Shift &&
		alt == h.combo.Alt &&
		win == h.combo.Win
}

func isKeyPressed(vk int) bool {
	r, _, _ := getAsyncKeyState.Call(uintptr(vk))
	return r&0x8000 != 0
}

// VKCode returns the Windows virtual key code for a key name.
// Returns 0 for empty string (modifier-only hotkey).
func VKCode(key string) (int, error) {
	if key == "" {
		return 0, nil
	}

	if len(key) == 1 {
		c := key[0]
		switch {
		case c >= 'a' && c <= 'z':
			return int(c-'a') + 0x41, nil
		case c >= '0' && c <= '9':
			return int(c-'0') + 0x30, nil
		}
	}

	var fn int
	if _, err := fmt.Sscanf(key, "f%d", &fn); err == nil && fn >= 1 && fn <= 24 {
		return 0x70 + fn - 1, nil
	}

	codes := map[string]int{
		"space": 0x20, "enter": 0x0D, "return": 0x0D,
		"esc": 0x1B, "escape": 0x1B, "tab": 0x09, "backspace": 0x08,
		"insert": 0x2D, "delete": 0x2E, "home": 0x24, "end": 0x23,
		"pageup": 0x21, "page_up": 0x21, "pagedown": 0x22, "page_down": 0x22,
		"left": 0x25, "up": 0x26, "right": 0x27, "down": 0x28,
		"pause": 0x13, "scrolllock": 0x91, "printscreen": 0x2C,
	}

	if code, ok := codes[key]; ok {
		return code, nil
	}

	return 0, fmt.Errorf("unknown key: %s", key)
}
