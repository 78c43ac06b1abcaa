package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"markestedt/macroflow/platform"
)

type fakeInput struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (f *fakeInput) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail
}

func (f *fakeInput) MoveMouse(x, y int) error {
	return f.record(fmt.Sprintf("move %d,%d", x, y))
}

func (f *fakeInput) Click(button platform.MouseButton) error {
	return f.record("click " + string(button))
}

func (f *fakeInput) MouseToggle(down bool) error {
	if down {
		return f.record("down")
	}
	return f.record("up")
}

func (f *fakeInput) TypeText(text string) error {
	return f.record("type " + text)
}

func (f *fakeInput) KeyTap(key string, modifiers ...string) error {
	return f.record(fmt.Sprintf("tap %s %v", key, modifiers))
}

func (f *fakeInput) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeClipboard struct {
	mu   sync.Mutex
	text string
}

func (f *fakeClipboard) Get() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, nil
}

func (f *fakeClipboard) Set(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	return nil
}

type fakePaster struct {
	clip   *fakeClipboard
	pasted []string
}

func (f *fakePaster) Paste() error {
	text, _ := f.clip.Get()
	f.pasted = append(f.pasted, text)
	return nil
}

type panicInput struct{ fakeInput }

func (p *panicInput) MoveMouse(x, y int) error { panic("display gone") }

func newEnv() (*Env, *fakeInput, *fakePaster) {
	in := &fakeInput{}
	clip := &fakeClipboard{}
	paster := &fakePaster{clip: clip}
	return &Env{Input: in, Clipboard: clip, Paster: paster}, in, paster
}

func allActions() []Action {
	return []Action{
		&MoveCursor{Name: "to corner", X: 10, Y: 20},
		&Click{Name: "ok button", X: 300, Y: 400, Button: platform.ButtonDouble},
		&DragDrop{StartX: 1, StartY: 2, EndX: 3, EndY: 4},
		&TypeText{Name: "greeting", Text: "hello, world"},
		&HotkeyCombo{Keys: "ctrl+shift+s"},
		&TextListCycle{Name: "names", Items: []string{"a", "b", "c"}, TypeDirectly: true},
		&Delay{Ms: 250},
		&ClipboardCapture{OutputFile: "/tmp/out.txt", WaitMs: 500},
		&FolderCapture{Folder: "/tmp/watch"},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, a := range allActions() {
		t.Run(string(a.Kind()), func(t *testing.T) {
			data, err := Encode(a)
			require.NoError(t, err)

			var head map[string]any
			require.NoError(t, json.Unmarshal(data, &head))
			require.Equal(t, string(a.Kind()), head["type"])

			decoded, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, a, decoded)
		})
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport","x":1}`))
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode([]byte(`{"x":1}`))
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeClickButtons(t *testing.T) {
	tests := []struct {
		input string
		want  platform.MouseButton
	}{
		{`{"type":"mouse_click","x":1,"y":2}`, platform.ButtonLeft},
		{`{"type":"mouse_click","button":"right"}`, platform.ButtonRight},
		{`{"type":"mouse_click","button":1}`, platform.ButtonRight},
		{`{"type":"mouse_click","button":2}`, platform.ButtonDouble},
	}

	for _, tt := range tests {
		a, err := Decode([]byte(tt.input))
		require.NoError(t, err, tt.input)
		require.Equal(t, tt.want, a.(*Click).Button, tt.input)
	}

	_, err := Decode([]byte(`{"type":"mouse_click","button":"middle"}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"type":"mouse_click","button":7}`))
	require.Error(t, err)
}

func TestTextListCycleVisitsIndicesModuloLength(t *testing.T) {
	env, in, _ := newEnv()
	tl := &TextListCycle{Items: []string{"zero", "one", "two"}, TypeDirectly: true}

	var visited []int
	for i := 0; i < 5; i++ {
		visited = append(visited, tl.Cursor())
		require.True(t, Run(context.Background(), tl, env))
	}

	require.Equal(t, []int{0, 1, 2, 0, 1}, visited)
	require.Equal(t, []string{"type zero", "type one", "type two", "type zero", "type one"}, in.Calls())

	require.NoError(t, tl.Begin(context.Background(), env))
	require.Equal(t, 0, tl.Cursor())
}

func TestTextListCyclePastesThroughClipboard(t *testing.T) {
	env, in, paster := newEnv()
	tl := &TextListCycle{Items: []string{"first", "second"}}

	require.True(t, Run(context.Background(), tl, env))
	require.True(t, Run(context.Background(), tl, env))

	require.Equal(t, []string{"first", "second"}, paster.pasted)
	require.Empty(t, in.Calls())
}

func TestTextListCycleEmptyFails(t *testing.T) {
	env, _, _ := newEnv()
	tl := &TextListCycle{}

	require.ErrorIs(t, tl.Execute(context.Background(), env), ErrEmptyList)
	require.False(t, Run(context.Background(), tl, env))
}

func TestExecuteDrivesInput(t *testing.T) {
	env, in, _ := newEnv()
	ctx := context.Background()

	require.True(t, Run(ctx, &Click{X: 5, Y: 6, Button: platform.ButtonRight}, env))
	require.True(t, Run(ctx, &DragDrop{StartX: 1, StartY: 1, EndX: 9, EndY: 9}, env))
	require.True(t, Run(ctx, &HotkeyCombo{Keys: "Ctrl + Shift + S"}, env))
	require.True(t, Run(ctx, &HotkeyCombo{Keys: "command+v"}, env))

	require.Equal(t, []string{
		"move 5,6", "click right",
		"move 1,1", "down", "move 9,9", "up",
		"tap s [ctrl shift]",
		"tap v [cmd]",
	}, in.Calls())
}

func TestRunReportsFailureWithoutPanicking(t *testing.T) {
	env, in, _ := newEnv()
	in.fail = errors.New("no display")

	require.False(t, Run(context.Background(), &TypeText{Text: "x"}, env))

	env.Input = &panicInput{}
	require.False(t, Run(context.Background(), &MoveCursor{X: 1, Y: 1}, env))
}

func TestDelayIsCancellable(t *testing.T) {
	env, _, _ := newEnv()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		done <- Run(ctx, &Delay{Ms: 60_000}, env)
	}()

	cancel()

	select {
	case ok := <-done:
		require.True(t, ok, "an interrupted delay is not a failure")
	case <-time.After(2 * time.Second):
		t.Fatal("delay ignored cancellation")
	}
}

func TestCaptureActionsNeedCapturer(t *testing.T) {
	env, _, _ := newEnv()

	require.False(t, Run(context.Background(), &ClipboardCapture{OutputFile: "x.txt"}, env))
	require.ErrorIs(t, (&FolderCapture{Folder: "x"}).Begin(context.Background(), env), ErrNoCapturer)
}

func TestLabelAndDescribe(t *testing.T) {
	require.Equal(t, "Mouse move", (&MoveCursor{}).Label())
	require.Equal(t, "custom", (&MoveCursor{Name: "custom"}).Label())
	require.Equal(t, "Move cursor to (3, 4)", (&MoveCursor{X: 3, Y: 4}).Describe())
	require.Equal(t, "Type text: abcdefghijklmnopqrst...", (&TypeText{Text: "abcdefghijklmnopqrstuvwxyz"}).Describe())
	require.Equal(t, "Text list: 'one' and 2 more", (&TextListCycle{Items: []string{"one", "two", "three"}}).Describe())
	require.Equal(t, "Text list: (empty)", (&TextListCycle{}).Describe())

	for _, k := range Kinds {
		a, err := New(k)
		require.NoError(t, err)
		require.Equal(t, k, a.Kind())
		require.NotEmpty(t, a.Label())
	}
}

func TestValidate(t *testing.T) {
	require.Error(t, Validate(&HotkeyCombo{Keys: " + "}))
	require.Error(t, Validate(&Delay{Ms: -1}))
	require.Error(t, Validate(&ClipboardCapture{}))
	require.Error(t, Validate(&FolderCapture{}))
	require.NoError(t, Validate(&TextListCycle{}))
}
