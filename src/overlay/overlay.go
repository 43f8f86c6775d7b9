// Package overlay is the dimmed full-screen layer drawn while the user drags
// a selection.
package overlay

import (
	"log"
	"sync"

	"textlens/src/screenshot"
)

// Overlay is driven by the selection state machine. Hide and Restore bracket
// the capture call so the overlay never appears in the captured image.
type Overlay interface {
	Show()
	Draw(r screenshot.Rect)
	Hide()
	Restore()
	Teardown()
}

// Headless tracks overlay state without drawing anything. It is used where no
// native overlay exists and in tests.
type Headless struct {
	mu      sync.Mutex
	shown   bool
	visible bool
	rect    screenshot.Rect
	drawn   int
}

func (h *Headless) Show() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown, h.visible = true, true
	log.Printf("Overlay: shown")
}

func (h *Headless) Draw(r screenshot.Rect) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rect = r
	h.drawn++
}

func (h *Headless) Hide() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visible = false
}

func (h *Headless) Restore() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shown {
		h.visible = true
	}
}

func (h *Headless) Teardown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown, h.visible = false, false
	h.rect = screenshot.Rect{}
	log.Printf("Overlay: torn down")
}

// Installed reports whether the overlay is present (possibly hidden).
func (h *Headless) Installed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shown
}

// Visible reports whether the overlay is currently drawn on screen.
func (h *Headless) Visible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible
}

// Rect returns the last drawn rectangle.
func (h *Headless) Rect() screenshot.Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rect
}
