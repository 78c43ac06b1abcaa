package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
	hook "github.com/robotn/gohook"
)

// Position is a screen coordinate
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PickPosition waits for the next mouse click and returns its position.
// A zero timeout waits until ctx is done.
func PickPosition(ctx context.Context, timeout time.Duration) (Position, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	evChan := hook.Start()
	defer hook.End()

	for {
		select {
		case ev, ok := <-evChan:
			if !ok {
				return Position{}, fmt.Errorf("input hook closed")
			}
			if ev.Kind == hook.MouseDown {
				x, y := robotgo.Location()
				return Position{X: x, Y: y}, nil
			}
		case <-ctx.Done():
			return Position{}, fmt.Errorf("waiting for click: %w", ctx.Err())
		}
	}
}

// CursorPosition returns the current pointer position
func CursorPosition() Position {
	x, y := robotgo.Location()
	return Position{X: x, Y: y}
}
