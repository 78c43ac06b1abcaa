package macro

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"markestedt/macroflow/action"
	"markestedt/macroflow/platform"
)

type countingInput struct {
	mu    sync.Mutex
	typed []string
	fail  bool
}

func (c *countingInput) MoveMouse(x, y int) error                { return nil }
func (c *countingInput) Click(button platform.MouseButton) error { return nil }
func (c *countingInput) MouseToggle(down bool) error             { return nil }
func (c *countingInput) KeyTap(key string, mods ...string) error { return nil }

func (c *countingInput) TypeText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typed = append(c.typed, text)
	if c.fail {
		return errors.New("keyboard unavailable")
	}
	return nil
}

func (c *countingInput) Typed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.typed...)
}

func (c *countingInput) Count() int {
	return len(c.Typed())
}

type fakeHotkey struct {
	mu     sync.Mutex
	combo  platform.KeyCombo
	events chan platform.Event
}

func newFakeHotkey() *fakeHotkey {
	return &fakeHotkey{events: make(chan platform.Event, 1)}
}

func (f *fakeHotkey) Listen(ctx context.Context, combo platform.KeyCombo) (<-chan platform.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.combo = combo
	return f.events, nil
}

func (f *fakeHotkey) Combo() platform.KeyCombo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.combo
}

type fakeCompanion struct {
	mu      sync.Mutex
	started int
	stopped int
	err     error
}

func (f *fakeCompanion) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.started++
	return nil
}

func (f *fakeCompanion) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeCompanion) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func waitDone(t *testing.T, e *Engine) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("run did not finish")
	}
}

func newTestEngine(t *testing.T, hotkey platform.Hotkey) (*Engine, *countingInput, chan RunSummary) {
	t.Helper()
	in := &countingInput{}
	e := NewEngine(Options{
		Env:    &action.Env{Input: in},
		Hotkey: hotkey,
	})
	e.SetDelay(0)

	summaries := make(chan RunSummary, 4)
	e.OnFinish(func(s RunSummary) { summaries <- s })
	return e, in, summaries
}

func TestLoopCountRunsListExactlyNTimes(t *testing.T) {
	e, in, summaries := newTestEngine(t, nil)
	require.NoError(t, e.Add(&action.TypeText{Text: "a"}))
	require.NoError(t, e.Add(&action.TypeText{Text: "b"}))
	e.SetLoopCount(3)

	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)

	require.Equal(t, []string{"a", "b", "a", "b", "a", "b"}, in.Typed())
	require.Equal(t, Stopped, e.State())

	s := <-summaries
	require.Equal(t, ReasonCompleted, s.Reason)
	require.Equal(t, 3, s.Iterations)
	require.Equal(t, 6, s.Executed)
	require.Zero(t, s.Failed)
	require.NotEmpty(t, s.ID)
}

func TestInfiniteLoopRunsUntilStopped(t *testing.T) {
	e, in, summaries := newTestEngine(t, nil)
	require.NoError(t, e.Add(&action.TypeText{Text: "x"}))
	e.SetLoopCount(0)
	e.SetDelay(1)

	require.NoError(t, e.Start(context.Background()))
	waitUntil(t, 2*time.Second, func() bool { return in.Count() >= 5 }, "loop kept running")

	require.NoError(t, e.Stop())
	waitDone(t, e)

	require.Equal(t, Stopped, e.State())
	require.Equal(t, ReasonStopped, (<-summaries).Reason)
	require.ErrorIs(t, e.Stop(), ErrNotRunning)
}

func TestParentCancelRecordsStopped(t *testing.T) {
	e, in, summaries := newTestEngine(t, nil)
	require.NoError(t, e.Add(&action.TypeText{Text: "x"}))
	e.SetLoopCount(0)
	e.SetDelay(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx))
	waitUntil(t, 2*time.Second, func() bool { return in.Count() >= 3 }, "loop kept running")

	cancel()
	waitDone(t, e)

	require.Equal(t, Stopped, e.State())
	require.Equal(t, ReasonStopped, (<-summaries).Reason)
	require.Equal(t, ReasonStopped, e.Stats().Reason)
}

func TestCompletedReasonSurvivesLateStop(t *testing.T) {
	e, _, summaries := newTestEngine(t, nil)
	require.NoError(t, e.Add(&action.TypeText{Text: "x"}))
	e.SetLoopCount(2)

	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)

	// the run is over; a Stop arriving now must not change the record
	require.ErrorIs(t, e.Stop(), ErrNotRunning)
	require.Equal(t, ReasonCompleted, (<-summaries).Reason)
}

func TestPauseBlocksUntilResume(t *testing.T) {
	e, in, _ := newTestEngine(t, nil)
	require.NoError(t, e.Add(&action.TypeText{Text: "x"}))
	e.SetLoopCount(-1)
	e.SetDelay(5)

	require.NoError(t, e.Start(context.Background()))
	waitUntil(t, 2*time.Second, func() bool { return in.Count() >= 2 }, "actions executed")

	require.NoError(t, e.Pause())
	require.NoError(t, e.Pause(), "pausing twice is a no-op")
	require.Equal(t, Paused, e.State())

	// Let an in-flight action settle
	time.Sleep(50 * time.Millisecond)
	before := in.Count()
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, before, in.Count(), "no action starts while paused")

	require.NoError(t, e.Resume())
	require.NoError(t, e.Resume(), "resuming a running macro is a no-op")
	waitUntil(t, 2*time.Second, func() bool { return in.Count() > before }, "resumed")

	require.NoError(t, e.Pause())
	start := time.Now()
	require.NoError(t, e.Stop())
	waitDone(t, e)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, Stopped, e.State())
}

func TestStopKeyEndsRun(t *testing.T) {
	hk := newFakeHotkey()
	e, in, summaries := newTestEngine(t, hk)
	require.NoError(t, e.Add(&action.TypeText{Text: "x"}))
	e.SetLoopCount(0)
	e.SetDelay(1)
	e.SetStopKey("Ctrl+F9")

	require.NoError(t, e.Start(context.Background()))
	waitUntil(t, 2*time.Second, func() bool { return in.Count() > 0 }, "running")

	require.Equal(t, platform.KeyCombo{Ctrl: true, Key: "f9"}, hk.Combo())

	hk.events <- platform.Event{Type: platform.Pressed}
	waitDone(t, e)

	require.Equal(t, ReasonHotkey, (<-summaries).Reason)
}

func TestStateErrors(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)

	require.ErrorIs(t, e.Start(context.Background()), ErrNoActions)
	require.ErrorIs(t, e.Pause(), ErrNotRunning)
	require.ErrorIs(t, e.Resume(), ErrNotRunning)
	require.ErrorIs(t, e.Stop(), ErrNotRunning)

	require.NoError(t, e.Add(&action.Delay{Ms: 10_000}))
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()

	require.ErrorIs(t, e.Start(context.Background()), ErrAlreadyRunning)
	require.ErrorIs(t, e.Add(&action.Delay{}), ErrRunning)
	require.ErrorIs(t, e.Remove(0), ErrRunning)
	require.ErrorIs(t, e.Clear(), ErrRunning)
	require.ErrorIs(t, e.LoadDocument(NewDocument()), ErrRunning)
}

func TestFailedActionDoesNotAbortRun(t *testing.T) {
	e, in, summaries := newTestEngine(t, nil)
	in.fail = true
	require.NoError(t, e.Add(&action.TypeText{Text: "a"}))
	require.NoError(t, e.Add(&action.TypeText{Text: "b"}))
	e.SetLoopCount(2)

	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)

	s := <-summaries
	require.Equal(t, ReasonCompleted, s.Reason)
	require.Equal(t, 4, s.Executed)
	require.Equal(t, 4, s.Failed)
}

func TestCompanionsAreBoundToRun(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	c := &fakeCompanion{}
	e.AddCompanion(c)
	require.NoError(t, e.Add(&action.TypeText{Text: "a"}))

	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)

	started, stopped := c.counts()
	require.Equal(t, 1, started)
	require.Equal(t, 1, stopped)

	c.err = errors.New("folder missing")
	require.Error(t, e.Start(context.Background()))
	require.Equal(t, Stopped, e.State())
}

func TestTextListCursorResetsOnStart(t *testing.T) {
	e, in, _ := newTestEngine(t, nil)
	require.NoError(t, e.Add(&action.TextListCycle{Items: []string{"one", "two", "three"}, TypeDirectly: true}))
	e.SetLoopCount(2)

	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)
	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)

	require.Equal(t, []string{"one", "two", "one", "two"}, in.Typed())
}

func TestSubscribeSeesTransitions(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	require.NoError(t, e.Add(&action.TypeText{Text: "a"}))

	var mu sync.Mutex
	var states []State
	e.Subscribe(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	})

	require.NoError(t, e.Start(context.Background()))
	waitDone(t, e)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, Running, states[0])
	require.Equal(t, Stopped, states[len(states)-1])
}

func TestListEditing(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	a := &action.TypeText{Text: "a"}
	b := &action.TypeText{Text: "b"}
	c := &action.TypeText{Text: "c"}
	require.NoError(t, e.Add(a))
	require.NoError(t, e.Add(b))
	require.NoError(t, e.Add(c))

	require.ErrorIs(t, e.MoveUp(0), ErrIndexOutOfRange)
	require.ErrorIs(t, e.MoveDown(2), ErrIndexOutOfRange)

	require.NoError(t, e.MoveDown(0))
	require.Equal(t, []action.Action{b, a, c}, e.Actions())

	require.NoError(t, e.MoveUp(2))
	require.Equal(t, []action.Action{b, c, a}, e.Actions())

	d := &action.Delay{Ms: 5}
	require.NoError(t, e.Replace(1, d))
	got, err := e.Action(1)
	require.NoError(t, err)
	require.Same(t, d, got)

	require.NoError(t, e.Remove(0))
	require.Equal(t, []action.Action{d, a}, e.Actions())
	require.ErrorIs(t, e.Remove(5), ErrIndexOutOfRange)
	require.ErrorIs(t, e.Replace(-1, d), ErrIndexOutOfRange)
	_, err = e.Action(9)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	require.NoError(t, e.Clear())
	require.Empty(t, e.Actions())
}

func TestSettings(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)

	e.SetDelay(-20)
	e.SetLoopCount(7)
	e.SetStopKey(" ESC ")

	delay, loops, key := e.Settings()
	require.Zero(t, delay)
	require.Equal(t, 7, loops)
	require.Equal(t, "esc", key)
}
