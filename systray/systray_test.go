package systray

import (
	"testing"

	"github.com/stretchr/testify/require"

	"markestedt/macroflow/macro"
)

func TestTooltip(t *testing.T) {
	require.Equal(t, "macroflow - untitled idle", tooltip(macro.Status{}))
	require.Equal(t, "macroflow - daily running (2/5)",
		tooltip(macro.Status{State: macro.Running, Macro: "daily", Iteration: 2, LoopCount: 5}))
	require.Equal(t, "macroflow - daily paused (7/∞)",
		tooltip(macro.Status{State: macro.Paused, Macro: "daily", Iteration: 7}))
}

func TestMenuState(t *testing.T) {
	require.Equal(t, enabledItems{start: true}, menuState(macro.Idle))
	require.Equal(t, enabledItems{start: true}, menuState(macro.Stopped))
	require.Equal(t, enabledItems{pause: true, stop: true}, menuState(macro.Running))
	require.Equal(t, enabledItems{resume: true, stop: true}, menuState(macro.Paused))
}

func TestBrowserCommand(t *testing.T) {
	name, args, ok := browserCommand("darwin", "http://localhost:1")
	require.True(t, ok)
	require.Equal(t, "open", name)
	require.Equal(t, []string{"http://localhost:1"}, args)

	name, args, ok = browserCommand("windows", "http://localhost:1")
	require.True(t, ok)
	require.Equal(t, "cmd", name)
	require.Equal(t, []string{"/c", "start", "http://localhost:1"}, args)

	_, _, ok = browserCommand("plan9", "http://localhost:1")
	require.False(t, ok)
}
