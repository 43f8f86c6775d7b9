package selection

import (
	"context"
	"errors"
	"log"

	gohook "github.com/robotn/gohook"

	"textlens/src/apperr"
)

// Dispatch translates one global input event into a machine transition.
// Events are ignored while the machine is idle.
func Dispatch(ctx context.Context, m *Machine, ev gohook.Event) {
	if m.State() == Idle {
		return
	}
	x, y := int(ev.X), int(ev.Y)

	switch ev.Kind {
	case gohook.MouseHold:
		m.PointerDown(x, y)
	case gohook.MouseDrag, gohook.MouseMove:
		m.PointerMove(x, y)
	case gohook.MouseUp:
		if m.State() != Dragging {
			return
		}
		if _, err := m.PointerUp(ctx, x, y); err != nil && !errors.Is(err, apperr.ErrSelectionTooSmall) {
			log.Printf("Selection: %v", err)
		}
	case gohook.KeyDown:
		if ev.Keycode == gohook.Keycode["esc"] || ev.Keychar == 27 {
			m.Escape()
		}
	}
}

// Drive feeds hook events to the machine returned by current until events
// closes or ctx is done. current may return nil while no page is running.
func Drive(ctx context.Context, current func() *Machine, events <-chan gohook.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if m := current(); m != nil {
				Dispatch(ctx, m, ev)
			}
		}
	}
}
