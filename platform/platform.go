package platform

import (
	"context"
)

// KeyCombo represents a keyboard key combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   string // Key name, empty for a modifier-only combo
}

// EventType represents the type of hotkey event
type EventType int

const (
	Pressed EventType = iota
	Released
)

// Event represents a hotkey event
type Event struct {
	Type EventType
}

// MouseButton names a mouse button action
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonDouble MouseButton = "double"
)

// Hotkey provides global hotkey detection
type Hotkey interface {
	Listen(ctx context.Context, combo KeyCombo) (<-chan Event, error)
}

// Clipboard provides clipboard access
type Clipboard interface {
	Get() (string, error)
	Set(text string) error
}

// Paster simulates paste operation
type Paster interface {
	Paste() error
}

// Input injects pointer and keyboard events
type Input interface {
	MoveMouse(x, y int) error
	Click(button MouseButton) error
	MouseToggle(down bool) error
	TypeText(text string) error
	KeyTap(key string, modifiers ...string) error
}
