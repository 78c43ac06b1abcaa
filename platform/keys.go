package platform

import (
	"fmt"
	"strings"
)

// ParseHotkey parses a combo string like "ctrl+shift+s", "ctrl+win" or "f12"
func ParseHotkey(combo string) (KeyCombo, error) {
	var kc KeyCombo
	combo = strings.TrimSpace(strings.ToLower(combo))
	if combo == "" {
		return kc, fmt.Errorf("empty hotkey combo")
	}

	parts := strings.Split(combo, "+")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return kc, fmt.Errorf("empty key in combo %q", combo)
		}

		switch NormalizeModifier(part) {
		case "ctrl":
			kc.Ctrl = true
		case "shift":
			kc.Shift = true
		case "alt":
			kc.Alt = true
		case "cmd":
			kc.Win = true
		default:
			// A non-modifier is only allowed in the last position
			if i != len(parts)-1 {
				return kc, fmt.Errorf("unknown modifier: %s", part)
			}
			kc.Key = part
		}
	}

	return kc, nil
}

// SplitCombo splits "ctrl+shift+s" into the key and its modifiers.
// The last element is always the key, even when it is itself a modifier name.
func SplitCombo(combo string) (key string, modifiers []string) {
	parts := strings.Split(combo, "+")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			keys = append(keys, p)
		}
	}
	if len(keys) == 0 {
		return "", nil
	}

	for _, m := range keys[:len(keys)-1] {
		modifiers = append(modifiers, NormalizeModifier(m))
	}
	return keys[len(keys)-1], modifiers
}

// NormalizeModifier maps common modifier spellings onto one name
func NormalizeModifier(mod string) string {
	switch strings.ToLower(mod) {
	case "command", "cmd", "super", "win", "windows", "meta":
		return "cmd"
	case "control", "ctrl":
		return "ctrl"
	case "alt", "option":
		return "alt"
	case "shift":
		return "shift"
	default:
		return mod
	}
}

// String renders the combo back in "ctrl+shift+key" form
func (kc KeyCombo) String() string {
	var parts []string
	if kc.Ctrl {
		parts = append(parts, "ctrl")
	}
	if kc.Shift {
		parts = append(parts, "shift")
	}
	if kc.Alt {
		parts = append(parts, "alt")
	}
	if kc.Win {
		parts = append(parts, "cmd")
	}
	if kc.Key != "" {
		parts = append(parts, kc.Key)
	}
	return strings.Join(parts, "+")
}
