// Package input provides the portable InputInjector implementation.
package input

import (
	"fmt"
	"sync"

	"github.com/go-vgo/robotgo"

	"deskrelay/internal/types"
)

// Robot injects events through the OS input queue via robotgo. The backend
// holds process-global state, so one Robot is shared by all sessions and
// calls are serialized.
type Robot struct {
	mu sync.Mutex
}

func NewRobot() (*Robot, error) {
	return &Robot{}, nil
}

func (r *Robot) Inject(ev types.InputEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case types.EventMouseMove:
		robotgo.Move(ev.X, ev.Y)
	case types.EventMouseButton:
		dir := "up"
		if ev.Pressed {
			dir = "down"
		}
		if err := robotgo.Toggle(buttonName(ev.Button), dir); err != nil {
			return &types.InjectError{Err: err}
		}
	case types.EventKey:
		key := normalizeKey(ev.Code)
		if key == "" {
			return &types.InjectError{Err: fmt.Errorf("unmapped key %q", ev.Code)}
		}
		dir := "up"
		if ev.Pressed {
			dir = "down"
		}
		if err := robotgo.KeyToggle(key, dir); err != nil {
			return &types.InjectError{Err: err}
		}
	case types.EventScroll:
		robotgo.Scroll(int(ev.DX), int(ev.DY))
	case types.EventPaste:
		robotgo.TypeStr(ev.Text)
	default:
		return &types.InjectError{Err: fmt.Errorf("unknown event type %q", ev.Type)}
	}
	return nil
}

func (r *Robot) Close() {}
