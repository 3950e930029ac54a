// Package hotkey reports press and release of the global push-to-talk
// key combination.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Key string

const (
	KeySpace Key = "space"
	KeyEnter Key = "enter"
	KeyJ     Key = "j"
	KeyF9    Key = "f9"
	KeyF10   Key = "f10"
	KeyF11   Key = "f11"
	KeyF12   Key = "f12"
)

var keys = []Key{KeySpace, KeyEnter, KeyJ, KeyF9, KeyF10, KeyF11, KeyF12}

// Combo is a key held together with zero or more modifiers.
type Combo struct {
	Ctrl  bool
	Shift bool
	Key   Key
}

var DefaultCombo = Combo{Ctrl: true, Shift: true, Key: KeySpace}

// ParseCombo reads forms like "ctrl+shift+space" or "f9".
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		last := i == len(parts)-1
		switch {
		case p == "ctrl" && !last:
			c.Ctrl = true
		case p == "shift" && !last:
			c.Shift = true
		case last:
			for _, k := range keys {
				if Key(p) == k {
					c.Key = k
				}
			}
			if c.Key == "" {
				return Combo{}, fmt.Errorf("hotkey %q: unsupported key %q", s, p)
			}
		default:
			return Combo{}, fmt.Errorf("hotkey %q: unsupported modifier %q", s, p)
		}
	}
	return c, nil
}

func (c Combo) String() string {
	var b strings.Builder
	if c.Ctrl {
		b.WriteString("Ctrl+")
	}
	if c.Shift {
		b.WriteString("Shift+")
	}
	k := string(c.Key)
	if len(k) > 0 {
		k = strings.ToUpper(k[:1]) + k[1:]
	}
	b.WriteString(k)
	return b.String()
}
