package hotkey

import (
	"testing"

	"github.com/holoplot/go-evdev"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		want    Combo
		wantErr bool
	}{
		{"names", DefaultKeys, Combo{evdev.KEY_LEFTCTRL, evdev.KEY_LEFTALT, evdev.KEY_U}, false},
		{"raw codes", []string{"29", "56", "22"}, Combo{29, 56, 22}, false},
		{"short lowercase", []string{"leftctrl", "u"}, Combo{evdev.KEY_LEFTCTRL, evdev.KEY_U}, false},
		{"empty", nil, nil, true},
		{"blank key", []string{" "}, nil, true},
		{"unknown", []string{"KEY_NOPE"}, nil, true},
		{"duplicate", []string{"KEY_U", "22"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCombo(tt.keys)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("key %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestComboString(t *testing.T) {
	c := Combo{evdev.KEY_LEFTCTRL, evdev.KEY_U}
	if got := c.String(); got != "KEY_LEFTCTRL+KEY_U" {
		t.Errorf("String() = %q", got)
	}
}

func TestTracker(t *testing.T) {
	ctrl, alt, u, x := evdev.EvCode(29), evdev.EvCode(56), evdev.EvCode(22), evdev.EvCode(45)

	type step struct {
		code  evdev.EvCode
		value int32
		fire  bool
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{"fires on last key", []step{
			{ctrl, 1, false}, {alt, 1, false}, {u, 1, true},
		}},
		{"order does not matter", []step{
			{u, 1, false}, {ctrl, 1, false}, {alt, 1, true},
		}},
		{"repeat does not refire", []step{
			{ctrl, 1, false}, {alt, 1, false}, {u, 1, true}, {u, 2, false}, {u, 2, false},
		}},
		{"release re-arms", []step{
			{ctrl, 1, false}, {alt, 1, false}, {u, 1, true},
			{u, 0, false}, {u, 1, true},
		}},
		{"other keys ignored", []step{
			{ctrl, 1, false}, {x, 1, false}, {alt, 1, false}, {u, 1, true},
		}},
		{"released key breaks combo", []step{
			{ctrl, 1, false}, {ctrl, 0, false}, {alt, 1, false}, {u, 1, false},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(Combo{ctrl, alt, u})
			for i, s := range tt.steps {
				if got := tr.Feed(s.code, s.value); got != s.fire {
					t.Errorf("step %d (%d=%d): fire = %v, want %v", i, s.code, s.value, got, s.fire)
				}
			}
		})
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(Combo{29, 22})
	tr.Feed(29, 1)
	tr.Reset()
	if tr.Feed(22, 1) {
		t.Error("fired after reset with only one key held")
	}
}
