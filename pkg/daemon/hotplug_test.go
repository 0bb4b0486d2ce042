package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"
)

func TestHotplugMonitorNilSafe(t *testing.T) {
	var m *hotplugMonitor
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got: %v", err)
	}
}

func TestHotplugMonitorStopUnstarted(t *testing.T) {
	m := newHotplugMonitor(discard, func(context.Context) {})
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("expected Running() to return false after Stop on unstarted monitor")
	}
}

func TestBuildSoundMatcher(t *testing.T) {
	matcher := buildSoundMatcher()
	tests := []struct {
		name  string
		event netlink.UEvent
		want  bool
	}{
		{"card added", netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "sound"}}, true},
		{"card changed", netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"SUBSYSTEM": "sound"}}, true},
		{"card removed", netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "sound"}}, false},
		{"block device", netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.Evaluate(tt.event); got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCardName(t *testing.T) {
	tests := []struct {
		env  map[string]string
		kobj string
		want string
	}{
		{map[string]string{"DEVPATH": "/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/sound/card2"}, "", "card2"},
		{map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/sound/card2/controlC2"}, "", ""},
		{map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/sound/card2/pcmC2D0p"}, "", ""},
		{map[string]string{}, "/devices/platform/sound/card0", "card0"},
		{map[string]string{"DEVPATH": "/devices/virtual/sound/card"}, "", ""},
	}
	for _, tt := range tests {
		got := cardName(netlink.UEvent{Env: tt.env, KObj: tt.kobj})
		if got != tt.want {
			t.Errorf("cardName(%v, %q) = %q, want %q", tt.env, tt.kobj, got, tt.want)
		}
	}
}

func TestHandleEventCoalescesBurst(t *testing.T) {
	var triggers atomic.Int32
	m := newHotplugMonitor(discard, func(context.Context) { triggers.Add(1) })
	m.settle = 20 * time.Millisecond

	ctx := context.Background()
	for _, p := range []string{"/sound/card2", "/sound/card2/controlC2", "/sound/card2"} {
		m.handleEvent(ctx, netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVPATH": p}})
	}

	deadline := time.Now().Add(2 * time.Second)
	for triggers.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if got := triggers.Load(); got != 1 {
		t.Errorf("triggered %d times, want 1", got)
	}
}

func TestHandleEventIgnoresSubdevices(t *testing.T) {
	var triggers atomic.Int32
	m := newHotplugMonitor(discard, func(context.Context) { triggers.Add(1) })
	m.settle = time.Millisecond

	m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVPATH": "/sound/card0/pcmC0D0p"}})
	time.Sleep(20 * time.Millisecond)
	if triggers.Load() != 0 {
		t.Error("subdevice event triggered a boot run")
	}
}
