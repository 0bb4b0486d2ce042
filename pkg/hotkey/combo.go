// Package hotkey watches keyboards for a global key combination.
package hotkey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holoplot/go-evdev"
)

// DefaultKeys is Ctrl+Alt+U.
var DefaultKeys = []string{"KEY_LEFTCTRL", "KEY_LEFTALT", "KEY_U"}

// Combo is a set of key codes that must be held together.
type Combo []evdev.EvCode

// ParseCombo accepts key names ("KEY_LEFTCTRL", "leftctrl") or raw codes ("29").
func ParseCombo(keys []string) (Combo, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("hotkey needs at least one key")
	}
	combo := make(Combo, 0, len(keys))
	seen := make(map[evdev.EvCode]bool, len(keys))
	for _, k := range keys {
		code, err := parseKey(k)
		if err != nil {
			return nil, err
		}
		if seen[code] {
			return nil, fmt.Errorf("duplicate key %q", k)
		}
		seen[code] = true
		combo = append(combo, code)
	}
	return combo, nil
}

func parseKey(k string) (evdev.EvCode, error) {
	k = strings.TrimSpace(k)
	if k == "" {
		return 0, fmt.Errorf("empty key")
	}
	if n, err := strconv.ParseUint(k, 10, 16); err == nil {
		return evdev.EvCode(n), nil
	}
	name := strings.ToUpper(k)
	if !strings.HasPrefix(name, "KEY_") {
		name = "KEY_" + name
	}
	code, ok := evdev.KEYFromString[name]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", k)
	}
	return code, nil
}

func (c Combo) String() string {
	names := make([]string, len(c))
	for i, code := range c {
		names[i] = keyName(code)
	}
	return strings.Join(names, "+")
}

func keyName(code evdev.EvCode) string {
	if name, ok := evdev.KEYToString[code]; ok {
		return name
	}
	return strconv.Itoa(int(code))
}

// Key event values reported by the kernel.
const (
	valueRelease = 0
	valuePress   = 1
	valueRepeat  = 2
)

// Tracker turns a key event stream into combo activations. It fires once
// when the last combo key goes down and re-arms when any combo key is
// released.
type Tracker struct {
	combo   Combo
	pressed map[evdev.EvCode]bool
	fired   bool
}

// NewTracker creates a tracker for combo.
func NewTracker(combo Combo) *Tracker {
	return &Tracker{combo: combo, pressed: make(map[evdev.EvCode]bool, len(combo))}
}

// Feed records one key event and reports whether the combo just completed.
func (t *Tracker) Feed(code evdev.EvCode, value int32) bool {
	if !t.member(code) {
		return false
	}
	switch value {
	case valuePress:
		t.pressed[code] = true
	case valueRelease:
		delete(t.pressed, code)
		t.fired = false
		return false
	default:
		return false
	}
	if t.fired || len(t.pressed) != len(t.combo) {
		return false
	}
	t.fired = true
	return true
}

// Reset forgets all held keys.
func (t *Tracker) Reset() {
	clear(t.pressed)
	t.fired = false
}

func (t *Tracker) member(code evdev.EvCode) bool {
	for _, c := range t.combo {
		if c == code {
			return true
		}
	}
	return false
}
