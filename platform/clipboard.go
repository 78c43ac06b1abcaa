package platform

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// SystemClipboard implements the Clipboard interface through the OS clipboard tools
type SystemClipboard struct{}

// NewClipboard creates a new clipboard instance
func NewClipboard() Clipboard {
	return &SystemClipboard{}
}

// Get retrieves text from the clipboard
func (c *SystemClipboard) Get() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("clipboard unsupported: no xclip, xsel or wl-clipboard found")
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return text, nil
}

// Set sets text to the clipboard
func (c *SystemClipboard) Set(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard unsupported: no xclip, xsel or wl-clipboard found")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}
