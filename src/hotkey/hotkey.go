package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// DefaultCombo starts a selection.
const DefaultCombo = "Ctrl+Alt+L"

// modifier names map to both left and right keycodes
var sides = map[string][]string{
	"ctrl":  {"ctrl", "rctrl"},
	"alt":   {"alt", "ralt"},
	"shift": {"shift", "rshift"},
	"cmd":   {"cmd", "rcmd"},
}

type keyState struct {
	name    string
	codes   []uint16
	pressed bool
}

// Combo tracks key state for one hotkey combination.
type Combo struct {
	spec string
	mu   sync.Mutex
	keys []keyState
}

// ParseCombo parses a hotkey string like "Ctrl+Alt+L".
func ParseCombo(spec string) (*Combo, error) {
	c := &Combo{spec: spec}
	for _, name := range parseHotkey(spec) {
		codes := keyNameToKeycodes(name)
		if len(codes) == 0 {
			return nil, fmt.Errorf("hotkey %q: unknown key %q", spec, name)
		}
		c.keys = append(c.keys, keyState{name: name, codes: codes})
	}
	if len(c.keys) == 0 {
		return nil, fmt.Errorf("hotkey %q: no keys", spec)
	}
	return c, nil
}

// Feed updates key state from one event and reports whether the whole
// combination is now held. State resets after activation.
func (c *Combo) Feed(ev gohook.Event) bool {
	if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyHold && ev.Kind != gohook.KeyUp {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	down := ev.Kind != gohook.KeyUp
	for i := range c.keys {
		for _, code := range c.keys[i].codes {
			if ev.Keycode == code {
				c.keys[i].pressed = down
				break
			}
		}
	}
	if !down {
		return false
	}
	for i := range c.keys {
		if !c.keys[i].pressed {
			return false
		}
	}
	for i := range c.keys {
		c.keys[i].pressed = false
	}
	log.Printf("Hotkey: %s activated", c.spec)
	return true
}

// Listen subscribes to hub and calls callback each time the combination fires.
func Listen(hub *Hub, spec string, callback func()) error {
	combo, err := ParseCombo(spec)
	if err != nil {
		return err
	}
	events := hub.Subscribe(16)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()
		for ev := range events {
			if combo.Feed(ev) && callback != nil {
				callback()
			}
		}
	}()
	log.Printf("Hotkey listener configured for: %s", spec)
	return nil
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(spec string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(spec), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			part = "ctrl"
		case "win", "super", "meta":
			part = "cmd"
		case "escape":
			part = "esc"
		case "return":
			part = "enter"
		}
		keys = append(keys, part)
	}
	return keys
}

// keyNameToKeycodes resolves a key name against the hook's keycode table.
func keyNameToKeycodes(name string) []uint16 {
	if variants, ok := sides[name]; ok {
		var codes []uint16
		for _, v := range variants {
			if code, ok := gohook.Keycode[v]; ok {
				codes = append(codes, code)
			}
		}
		return codes
	}
	if code, ok := gohook.Keycode[name]; ok {
		return []uint16{code}
	}
	return nil
}
