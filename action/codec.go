package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"markestedt/macroflow/platform"
)

// New returns a zero action of the given kind.
func New(k Kind) (Action, error) {
	switch k {
	case KindMoveCursor:
		return &MoveCursor{}, nil
	case KindClick:
		return &Click{Button: platform.ButtonLeft}, nil
	case KindDragDrop:
		return &DragDrop{}, nil
	case KindTypeText:
		return &TypeText{}, nil
	case KindHotkeyCombo:
		return &HotkeyCombo{}, nil
	case KindTextListCycle:
		return &TextListCycle{}, nil
	case KindDelay:
		return &Delay{}, nil
	case KindClipboardCapture:
		return &ClipboardCapture{}, nil
	case KindFolderCapture:
		return &FolderCapture{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
}

// Encode serializes an action with its type tag.
func Encode(a Action) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s action: %w", a.Kind(), err)
	}
	return data, nil
}

// Decode parses one tagged action object.
func Decode(data []byte) (Action, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse action: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrUnknownKind)
	}

	a, err := New(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("failed to parse %s action: %w", head.Type, err)
	}
	if err := Validate(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the fields that Execute cannot recover from.
func Validate(a Action) error {
	switch v := a.(type) {
	case *Click:
		switch v.Button {
		case platform.ButtonLeft, platform.ButtonRight, platform.ButtonDouble:
		default:
			return fmt.Errorf("invalid mouse button %q", v.Button)
		}
	case *HotkeyCombo:
		if key, _ := platform.SplitCombo(v.Keys); key == "" {
			return fmt.Errorf("key combination is empty")
		}
	case *Delay:
		if v.Ms < 0 {
			return fmt.Errorf("delay must not be negative: %d", v.Ms)
		}
	case *ClipboardCapture:
		if strings.TrimSpace(v.OutputFile) == "" {
			return fmt.Errorf("clipboard capture needs an output file")
		}
		if v.WaitMs < 0 {
			return fmt.Errorf("wait must not be negative: %d", v.WaitMs)
		}
	case *FolderCapture:
		if strings.TrimSpace(v.Folder) == "" {
			return fmt.Errorf("folder capture needs a folder")
		}
	case *MoveCursor, *DragDrop, *TypeText, *TextListCycle:
	}
	return nil
}

// withType marshals v and prepends the type tag to the resulting object
func withType(k Kind, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(k)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if len(body) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

func (a *MoveCursor) MarshalJSON() ([]byte, error) {
	type plain MoveCursor
	return withType(a.Kind(), (*plain)(a))
}

func (a *Click) MarshalJSON() ([]byte, error) {
	type plain Click
	return withType(a.Kind(), (*plain)(a))
}

// UnmarshalJSON also accepts the numeric buttons (0 left, 1 right, 2 double)
// written by older documents.
func (a *Click) UnmarshalJSON(data []byte) error {
	type plain Click
	raw := struct {
		*plain
		Button json.RawMessage `json:"button"`
	}{plain: (*plain)(a)}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Button = platform.ButtonLeft
	if len(raw.Button) == 0 || string(raw.Button) == "null" {
		return nil
	}

	var name string
	if err := json.Unmarshal(raw.Button, &name); err == nil {
		if name != "" {
			a.Button = platform.MouseButton(strings.ToLower(name))
		}
		return nil
	}

	var n int
	if err := json.Unmarshal(raw.Button, &n); err != nil {
		return fmt.Errorf("invalid mouse button %s", raw.Button)
	}
	switch n {
	case 0:
		a.Button = platform.ButtonLeft
	case 1:
		a.Button = platform.ButtonRight
	case 2:
		a.Button = platform.ButtonDouble
	default:
		return fmt.Errorf("invalid mouse button %d", n)
	}
	return nil
}

func (a *DragDrop) MarshalJSON() ([]byte, error) {
	type plain DragDrop
	return withType(a.Kind(), (*plain)(a))
}

func (a *TypeText) MarshalJSON() ([]byte, error) {
	type plain TypeText
	return withType(a.Kind(), (*plain)(a))
}

func (a *HotkeyCombo) MarshalJSON() ([]byte, error) {
	type plain HotkeyCombo
	return withType(a.Kind(), (*plain)(a))
}

func (a *TextListCycle) MarshalJSON() ([]byte, error) {
	type plain TextListCycle
	return withType(a.Kind(), (*plain)(a))
}

func (a *Delay) MarshalJSON() ([]byte, error) {
	type plain Delay
	return withType(a.Kind(), (*plain)(a))
}

func (a *ClipboardCapture) MarshalJSON() ([]byte, error) {
	type plain ClipboardCapture
	return withType(a.Kind(), (*plain)(a))
}

func (a *FolderCapture) MarshalJSON() ([]byte, error) {
	type plain FolderCapture
	return withType(a.Kind(), (*plain)(a))
}
