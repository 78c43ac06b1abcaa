package platform

import (
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// RobotInput implements Input on top of robotgo
type RobotInput struct{}

// NewInput creates a robotgo backed input injector
func NewInput() Input {
	return &RobotInput{}
}

// MoveMouse moves the pointer to an absolute screen position
func (in *RobotInput) MoveMouse(x, y int) (err error) {
	defer recoverInto(&err, "move")
	robotgo.Move(x, y)
	return nil
}

// Click clicks at the current pointer position
func (in *RobotInput) Click(button MouseButton) (err error) {
	defer recoverInto(&err, "click")

	switch button {
	case ButtonLeft, "":
		robotgo.Click("left", false)
	case ButtonRight:
		robotgo.Click("right", false)
	case ButtonDouble:
		robotgo.Click("left", true)
	default:
		return fmt.Errorf("unknown mouse button: %s", button)
	}
	return nil
}

// MouseToggle presses or releases the left button
func (in *RobotInput) MouseToggle(down bool) (err error) {
	defer recoverInto(&err, "toggle")

	if down {
		return robotgo.Toggle("left")
	}
	return robotgo.Toggle("left", "up")
}

// TypeText types text as individual keystrokes
func (in *RobotInput) TypeText(text string) (err error) {
	defer recoverInto(&err, "type")
	robotgo.TypeStr(text)
	return nil
}

// KeyTap presses key while holding the given modifiers
func (in *RobotInput) KeyTap(key string, modifiers ...string) (err error) {
	defer recoverInto(&err, "key tap")

	mods := make([]interface{}, 0, len(modifiers))
	for _, m := range modifiers {
		mods = append(mods, NormalizeModifier(m))
	}
	return robotgo.KeyTap(robotgoKey(key), mods...)
}

// robotgoKey maps the few key names robotgo spells differently
func robotgoKey(key string) string {
	switch key {
	case "return":
		return "enter"
	case "esc":
		return "escape"
	case "page_up", "pgup":
		return "pageup"
	case "page_down", "pgdn":
		return "pagedown"
	case "del":
		return "delete"
	default:
		return key
	}
}

// recoverInto turns a panic from the C layer into an error
func recoverInto(err *error, op string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panicked on %s: %v", op, runtime.GOOS, r)
	}
}

// RobotPaster sends the platform paste shortcut through robotgo
type RobotPaster struct {
	input Input
}

// NewRobotPaster creates a paster that presses ctrl+v (cmd+v on macOS)
func NewRobotPaster(input Input) *RobotPaster {
	return &RobotPaster{input: input}
}

// Paste simulates the paste shortcut
func (p *RobotPaster) Paste() error {
	mod := "ctrl"
	if runtime.GOOS == "darwin" {
		mod = "cmd"
	}
	return p.input.KeyTap("v", mod)
}
