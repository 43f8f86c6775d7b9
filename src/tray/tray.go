// Package tray puts TextLens in the system tray.
package tray

import (
	"log"

	"github.com/getlantern/systray"
)

const title = "TextLens"

// Actions are invoked from the menu. Nil actions hide their item.
type Actions struct {
	Select func()
	Show   func()
	Copy   func()
	Clear  func()
	// Quit runs before the tray exits.
	Quit func()
}

type item struct {
	title   string
	tooltip string
	fn      func()
}

func (a Actions) items() []item {
	all := []item{
		{"Select region", "Select a screen region to analyze", a.Select},
		{"Show result", "Show the latest result", a.Show},
		{"Copy result", "Copy the latest result to the clipboard", a.Copy},
		{"Clear result", "Discard the latest result", a.Clear},
	}
	out := all[:0]
	for _, it := range all {
		if it.fn != nil {
			out = append(out, it)
		}
	}
	return out
}

// Run blocks until Quit is chosen or Stop is called. It must be called
// from the main goroutine.
func Run(a Actions) {
	systray.Run(func() { onReady(a) }, onExit)
}

// Stop quits the tray loop.
func Stop() {
	systray.Quit()
}

// SetStatus shows text as the tray tooltip.
func SetStatus(text string) {
	if text == "" {
		text = title
	}
	systray.SetTooltip(text)
}

func onReady(a Actions) {
	if icon, err := Icon(); err == nil {
		systray.SetIcon(icon)
	} else {
		log.Printf("Tray: icon unavailable: %v", err)
	}
	systray.SetTitle(title)
	systray.SetTooltip(title)

	for _, it := range a.items() {
		mi := systray.AddMenuItem(it.title, it.tooltip)
		fn := it.fn
		go func() {
			for range mi.ClickedCh {
				fn()
			}
		}()
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit TextLens")

	go func() {
		<-mQuit.ClickedCh
		if a.Quit != nil {
			a.Quit()
		}
		systray.Quit()
	}()
}

func onExit() {
	log.Printf("Tray: exited")
}
