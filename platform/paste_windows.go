//go:build windows

package platform

import (
	"fmt"
	"time"
	"unsafe"
)

var (
	sendInput      = user32.NewProc("SendInput")
	mapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002
	mapvkVkToVsc   = 0
	vkControl      = 0x11
	vkV            = 0x56
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // Padding to match C struct size
}

// WindowsPaster implements the Paster interface with SendInput scan codes,
// which also reaches elevated windows that ignore robotgo's events.
type WindowsPaster struct{}

// NewPaster creates the paste simulator for this platform
func NewPaster(_ Input) Paster {
	return &WindowsPaster{}
}

// Paste presses Ctrl+V as one SendInput batch
func (p *WindowsPaster) Paste() error {
	if err := sendChord(vkControl, vkV); err != nil {
		return fmt.Errorf("paste: %w", err)
	}

	// Give the target window time to read the clipboard
	time.Sleep(20 * time.Millisecond)
	return nil
}

// sendChord presses the keys in order and releases them in reverse order
func sendChord(vks ...uint16) error {
	if len(vks) == 0 {
		return nil
	}

	inputs := make([]input, 0, len(vks)*2)
	for _, vk := range vks {
		inputs = append(inputs, keyInput(vk, 0))
	}
	for i := len(vks) - 1; i >= 0; i-- {
		inputs = append(inputs, keyInput(vks[i], keyeventfKeyup))
	}

	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(ret) != len(inputs) {
		return fmt.Errorf("SendInput injected %d of %d events: %w", ret, len(inputs), err)
	}
	return nil
}

func keyInput(vk uint16, flags uint32) input {
	scan, _, _ := mapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)
	return input{
		inputType: inputKeyboard,
		ki: keyboardInput{
			wVk:     vk,
			wScan:   uint16(scan),
			dwFlags: flags,
		},
	}
}
