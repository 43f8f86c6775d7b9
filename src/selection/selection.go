// Package selection implements the drag-to-select state machine of a page:
// idle, selecting, then captured or cancelled, and back to idle.
package selection

import (
	"context"
	"fmt"
	"log"
	"sync"

	"textlens/src/apperr"
	"textlens/src/notification"
	"textlens/src/overlay"
	"textlens/src/screenshot"
)

// State of the machine.
type State int

const (
	Idle State = iota
	Selecting
	Dragging
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Dragging:
		return "dragging"
	case Capturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// User-facing notices.
const (
	MsgTooSmall   = "Selection too small. Please select a larger area."
	MsgCancelled  = "Selection cancelled"
	MsgCapturing  = "Capturing and processing selection..."
	MsgSubmitFail = "Error communicating with background script"
)

// Submitter hands a captured region to the coordinator.
type Submitter interface {
	Submit(ctx context.Context, rect screenshot.Rect, image []byte) error
}

// Machine is safe for concurrent use; events may come from the input hook
// and from programmatic callers.
type Machine struct {
	overlay   overlay.Overlay
	capturer  screenshot.Capturer
	submitter Submitter
	notifier  notification.Notifier

	mu     sync.Mutex
	state  State
	anchor point
	cur    point
}

type point struct{ x, y int }

// New builds an idle machine.
func New(o overlay.Overlay, c screenshot.Capturer, s Submitter, n notification.Notifier) *Machine {
	return &Machine{overlay: o, capturer: c, submitter: s, notifier: n}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Begin installs the overlay. It returns false when a selection is already
// active, in which case nothing changes.
func (m *Machine) Begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return false
	}
	m.state = Selecting
	m.overlay.Show()
	return true
}

// PointerDown anchors the rectangle.
func (m *Machine) PointerDown(x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Selecting && m.state != Dragging {
		return
	}
	m.state = Dragging
	m.anchor = point{x, y}
	m.cur = m.anchor
	m.overlay.Draw(m.rectLocked())
}

// PointerMove updates the rectangle while dragging.
func (m *Machine) PointerMove(x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Dragging {
		return
	}
	m.cur = point{x, y}
	m.overlay.Draw(m.rectLocked())
}

// Escape cancels an active selection.
func (m *Machine) Escape() {
	m.mu.Lock()
	if m.state == Idle || m.state == Capturing {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.mu.Unlock()

	m.notifier.Notify(notification.Error, MsgCancelled)
}

// PointerUp finishes the drag. Too-small rectangles are rejected without a
// capture. Otherwise the region is captured with the overlay hidden and
// submitted. The machine is idle again on every return path.
func (m *Machine) PointerUp(ctx context.Context, x, y int) (screenshot.Rect, error) {
	m.mu.Lock()
	if m.state != Dragging {
		state := m.state
		m.mu.Unlock()
		return screenshot.Rect{}, fmt.Errorf("pointer up while %s", state)
	}
	m.cur = point{x, y}
	rect := m.rectLocked()

	if rect.TooSmall() {
		m.teardownLocked()
		m.mu.Unlock()
		m.notifier.Notify(notification.Error, MsgTooSmall)
		return rect, apperr.SelectionTooSmall(rect.Width, rect.Height)
	}
	m.state = Capturing
	m.mu.Unlock()

	m.notifier.Notify(notification.Processing, MsgCapturing)
	image, err := m.capture(rect)

	m.mu.Lock()
	m.teardownLocked()
	m.mu.Unlock()

	if err != nil {
		log.Printf("Selection: capture failed: %v", err)
		m.notifier.Notify(notification.Error, "Error: "+err.Error())
		return rect, err
	}

	if err := m.submitter.Submit(ctx, rect, image); err != nil {
		log.Printf("Selection: submit failed: %v", err)
		m.notifier.Notify(notification.Error, MsgSubmitFail)
		return rect, err
	}
	return rect, nil
}

func (m *Machine) capture(rect screenshot.Rect) ([]byte, error) {
	m.overlay.Hide()
	defer m.overlay.Restore()
	return m.capturer.Capture(rect)
}

func (m *Machine) rectLocked() screenshot.Rect {
	left, right := m.anchor.x, m.cur.x
	if right < left {
		left, right = right, left
	}
	top, bottom := m.anchor.y, m.cur.y
	if bottom < top {
		top, bottom = bottom, top
	}
	return screenshot.Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

func (m *Machine) teardownLocked() {
	m.state = Idle
	m.anchor, m.cur = point{}, point{}
	m.overlay.Teardown()
}
