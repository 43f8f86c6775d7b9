// Package notification shows short-lived status messages. At most one notice
// is visible at a time; a new one replaces the old.
package notification

import (
	"log"
	"sync"
	"time"
)

// Kind selects the notice style.
type Kind string

const (
	Success    Kind = "success"
	Error      Kind = "error"
	Processing Kind = "processing"
)

// Lifetime is how long a notice stays visible.
const Lifetime = 5 * time.Second

// Notifier shows a transient notice.
type Notifier interface {
	Notify(kind Kind, text string)
}

// Notice is one displayed message.
type Notice struct {
	Kind Kind
	Text string
	At   time.Time
}

// Board keeps the current notice and forwards it to an optional sink.
type Board struct {
	mu      sync.Mutex
	current *Notice
	now     func() time.Time

	// OnShow, when set, renders the notice (terminal, tray tooltip).
	OnShow func(Notice)
}

// NewBoard returns a board using the wall clock.
func NewBoard() *Board {
	return &Board{now: time.Now}
}

func (b *Board) Notify(kind Kind, text string) {
	n := Notice{Kind: kind, Text: text, At: b.clock()}
	b.mu.Lock()
	b.current = &n
	show := b.OnShow
	b.mu.Unlock()

	log.Printf("Notification [%s]: %s", kind, text)
	if show != nil {
		show(n)
	}
}

// Current returns the visible notice, if it has not expired.
func (b *Board) Current() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.clock().Sub(b.current.At) >= Lifetime {
		return Notice{}, false
	}
	return *b.current, true
}

func (b *Board) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}

// ShowBlockingError reports a fatal startup problem.
func ShowBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
}
