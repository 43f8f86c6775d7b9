package presenter

import (
	"strings"
	"sync"

	"textlens/src/notification"
	"textlens/src/screenshot"
)

// Page notices.
const (
	NoticeComplete = "Analysis complete! Displaying results..."
	calloutGap     = 10
)

// CalloutView is a positioned result box.
type CalloutView struct {
	Left int
	Top  int
	Text string
}

// Callout is the page overlay renderer. It holds at most one callout.
type Callout struct {
	Notifier notification.Notifier
	// OnShow, when set, draws the callout.
	OnShow func(CalloutView)

	mu      sync.Mutex
	current *CalloutView
}

// ShowResult replaces any existing callout with one anchored just below rect.
func (c *Callout) ShowResult(rect screenshot.Rect, extracted, analysis string) CalloutView {
	c.notify(notification.Success, NoticeComplete)

	v := CalloutView{
		Left: rect.Left,
		Top:  rect.Top + rect.Height + calloutGap,
		Text: "📄 Extracted Text:\n" + strings.TrimSpace(extracted) + "\n\n🔍 Analysis:\n" + strings.TrimSpace(analysis),
	}
	c.mu.Lock()
	c.current = &v
	show := c.OnShow
	c.mu.Unlock()

	if show != nil {
		show(v)
	}
	return v
}

// ShowError reports a failed job as a transient notice only.
func (c *Callout) ShowError(msg string) {
	c.notify(notification.Error, "Error: "+msg)
}

// Current returns the visible callout.
func (c *Callout) Current() (CalloutView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return CalloutView{}, false
	}
	return *c.current, true
}

// Dismiss removes the callout.
func (c *Callout) Dismiss() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Callout) notify(kind notification.Kind, text string) {
	if c.Notifier != nil {
		c.Notifier.Notify(kind, text)
	}
}
