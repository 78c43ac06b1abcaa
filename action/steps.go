package action

import (
	"context"
	"fmt"
	"time"

	"markestedt/macroflow/platform"
)

// MoveCursor moves the pointer to an absolute position.
type MoveCursor struct {
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func (a *MoveCursor) Kind() Kind    { return KindMoveCursor }
func (a *MoveCursor) Label() string { return label(a.Name, KindMoveCursor) }
func (a *MoveCursor) sealed()       {}

func (a *MoveCursor) Describe() string {
	return fmt.Sprintf("Move cursor to (%d, %d)", a.X, a.Y)
}

func (a *MoveCursor) Execute(ctx context.Context, env *Env) error {
	return env.Input.MoveMouse(a.X, a.Y)
}

// Click moves to a position and clicks there.
type Click struct {
	Name   string               `json:"name"`
	X      int                  `json:"x"`
	Y      int                  `json:"y"`
	Button platform.MouseButton `json:"button"`
}

func (a *Click) Kind() Kind    { return KindClick }
func (a *Click) Label() string { return label(a.Name, KindClick) }
func (a *Click) sealed()       {}

func (a *Click) Describe() string {
	var what string
	switch a.Button {
	case platform.ButtonRight:
		what = "Right click"
	case platform.ButtonDouble:
		what = "Double click"
	default:
		what = "Left click"
	}
	return fmt.Sprintf("%s at (%d, %d)", what, a.X, a.Y)
}

func (a *Click) Execute(ctx context.Context, env *Env) error {
	if err := env.Input.MoveMouse(a.X, a.Y); err != nil {
		return err
	}
	return env.Input.Click(a.Button)
}

// DragDrop holds the left button from one position to another.
type DragDrop struct {
	Name   string `json:"name"`
	StartX int    `json:"start_x"`
	StartY int    `json:"start_y"`
	EndX   int    `json:"end_x"`
	EndY   int    `json:"end_y"`
}

func (a *DragDrop) Kind() Kind    { return KindDragDrop }
func (a *DragDrop) Label() string { return label(a.Name, KindDragDrop) }
func (a *DragDrop) sealed()       {}

func (a *DragDrop) Describe() string {
	return fmt.Sprintf("Drag from (%d, %d) to (%d, %d)", a.StartX, a.StartY, a.EndX, a.EndY)
}

func (a *DragDrop) Execute(ctx context.Context, env *Env) error {
	if err := env.Input.MoveMouse(a.StartX, a.StartY); err != nil {
		return err
	}
	if err := env.Input.MouseToggle(true); err != nil {
		return err
	}
	if err := env.Input.MoveMouse(a.EndX, a.EndY); err != nil {
		// Never leave the button held down
		_ = env.Input.MouseToggle(false)
		return err
	}
	return env.Input.MouseToggle(false)
}

// TypeText types text as keystrokes.
type TypeText struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (a *TypeText) Kind() Kind    { return KindTypeText }
func (a *TypeText) Label() string { return label(a.Name, KindTypeText) }
func (a *TypeText) sealed()       {}

func (a *TypeText) Describe() string {
	return "Type text: " + preview(a.Text, 20)
}

func (a *TypeText) Execute(ctx context.Context, env *Env) error {
	return env.Input.TypeText(a.Text)
}

// HotkeyCombo presses a key chord such as "ctrl+shift+s".
type HotkeyCombo struct {
	Name string `json:"name"`
	Keys string `json:"keys"`
}

func (a *HotkeyCombo) Kind() Kind    { return KindHotkeyCombo }
func (a *HotkeyCombo) Label() string { return label(a.Name, KindHotkeyCombo) }
func (a *HotkeyCombo) sealed()       {}

func (a *HotkeyCombo) Describe() string {
	return "Key combination: " + a.Keys
}

func (a *HotkeyCombo) Execute(ctx context.Context, env *Env) error {
	key, mods := platform.SplitCombo(a.Keys)
	if key == "" {
		return fmt.Errorf("empty key combination")
	}
	return env.Input.KeyTap(key, mods...)
}

// TextListCycle enters the next item of a list on every execution.
type TextListCycle struct {
	Name         string   `json:"name"`
	Items        []string `json:"items"`
	TypeDirectly bool     `json:"type_directly"`

	cursor int
}

func (a *TextListCycle) Kind() Kind    { return KindTextListCycle }
func (a *TextListCycle) Label() string { return label(a.Name, KindTextListCycle) }
func (a *TextListCycle) sealed()       {}

func (a *TextListCycle) Describe() string {
	switch len(a.Items) {
	case 0:
		return "Text list: (empty)"
	case 1:
		return fmt.Sprintf("Text list: '%s'", preview(a.Items[0], 20))
	default:
		return fmt.Sprintf("Text list: '%s' and %d more", preview(a.Items[0], 20), len(a.Items)-1)
	}
}

// Cursor returns the index the next execution will enter.
func (a *TextListCycle) Cursor() int { return a.cursor }

// Reset rewinds the cursor to the first item.
func (a *TextListCycle) Reset() { a.cursor = 0 }

func (a *TextListCycle) Begin(ctx context.Context, env *Env) error {
	a.Reset()
	return nil
}

func (a *TextListCycle) End(env *Env) {}

func (a *TextListCycle) Execute(ctx context.Context, env *Env) error {
	if len(a.Items) == 0 {
		return ErrEmptyList
	}
	if a.cursor >= len(a.Items) {
		a.cursor = 0
	}

	text := a.Items[a.cursor]
	env.logger().Debug("Entering list item", "index", a.cursor, "text", preview(text, 20))

	if err := a.enter(ctx, env, text); err != nil {
		return err
	}

	a.cursor = (a.cursor + 1) % len(a.Items)
	return nil
}

func (a *TextListCycle) enter(ctx context.Context, env *Env, text string) error {
	if a.TypeDirectly {
		return env.Input.TypeText(text)
	}

	if err := env.Clipboard.Set(text); err != nil {
		return err
	}
	if err := sleep(ctx, 50*time.Millisecond); err != nil {
		return err
	}
	if err := env.Paster.Paste(); err != nil {
		return err
	}
	return sleep(ctx, 100*time.Millisecond)
}

// Delay waits for a fixed time.
type Delay struct {
	Name string `json:"name"`
	Ms   int    `json:"ms"`
}

func (a *Delay) Kind() Kind    { return KindDelay }
func (a *Delay) Label() string { return label(a.Name, KindDelay) }
func (a *Delay) sealed()       {}

func (a *Delay) Describe() string {
	return fmt.Sprintf("Wait %d ms", a.Ms)
}

func (a *Delay) Execute(ctx context.Context, env *Env) error {
	return sleep(ctx, time.Duration(a.Ms)*time.Millisecond)
}

// ClipboardCapture appends the clipboard to a file after an optional wait.
type ClipboardCapture struct {
	Name       string `json:"name"`
	OutputFile string `json:"output_file"`
	WaitMs     int    `json:"wait_ms"`
}

func (a *ClipboardCapture) Kind() Kind    { return KindClipboardCapture }
func (a *ClipboardCapture) Label() string { return label(a.Name, KindClipboardCapture) }
func (a *ClipboardCapture) sealed()       {}

func (a *ClipboardCapture) Describe() string {
	return "Capture clipboard to " + a.OutputFile
}

func (a *ClipboardCapture) Execute(ctx context.Context, env *Env) error {
	if env.Clips == nil {
		return ErrNoCapturer
	}
	if err := sleep(ctx, time.Duration(a.WaitMs)*time.Millisecond); err != nil {
		return err
	}

	captured, err := env.Clips.CaptureClipboard(ctx, a.OutputFile)
	if err != nil {
		return err
	}
	if !captured {
		env.logger().Debug("No new clipboard content", "file", a.OutputFile)
	}
	return nil
}

// FolderCapture writes the clipboard into folders created under Folder.
type FolderCapture struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

func (a *FolderCapture) Kind() Kind    { return KindFolderCapture }
func (a *FolderCapture) Label() string { return label(a.Name, KindFolderCapture) }
func (a *FolderCapture) sealed()       {}

func (a *FolderCapture) Describe() string {
	return "Capture clipboard into new folders of " + a.Folder
}

func (a *FolderCapture) Begin(ctx context.Context, env *Env) error {
	if env.Folders == nil {
		return ErrNoCapturer
	}
	return env.Folders.WatchFolder(ctx, a.Folder)
}

func (a *FolderCapture) End(env *Env) {
	if env.Folders != nil {
		env.Folders.UnwatchFolder(a.Folder)
	}
}

func (a *FolderCapture) Execute(ctx context.Context, env *Env) error {
	if env.Folders == nil {
		return ErrNoCapturer
	}
	n, err := env.Folders.CaptureFolder(ctx, a.Folder)
	if err != nil {
		return err
	}
	env.logger().Debug("Folder capture done", "folder", a.Folder, "folders", n)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
