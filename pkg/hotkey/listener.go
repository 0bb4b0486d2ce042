package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/holoplot/go-evdev"
)

// Device is the part of an input device the listener reads from.
type Device interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Listener reads key events from every keyboard able to produce the combo.
type Listener struct {
	combo   Combo
	debug   bool
	logger  *slog.Logger
	devices []Device

	// OpenFunc finds the devices to read. Defaults to OpenKeyboards.
	OpenFunc func(combo Combo, logger *slog.Logger) ([]Device, error)
}

// NewListener creates a listener. In debug mode every key event is logged
// and the combo never fires.
func NewListener(combo Combo, debug bool, logger *slog.Logger) *Listener {
	return &Listener{combo: combo, debug: debug, logger: logger, OpenFunc: OpenKeyboards}
}

// Combo returns the watched key combination.
func (l *Listener) Combo() Combo {
	return l.combo
}

// Open grabs the input devices ahead of Run, so registration problems
// surface at startup.
func (l *Listener) Open() error {
	if l.devices != nil {
		return nil
	}
	devices, err := l.OpenFunc(l.combo, l.logger)
	if err != nil {
		return err
	}
	l.devices = devices
	return nil
}

// OpenKeyboards opens every input device whose key capabilities cover combo.
func OpenKeyboards(combo Combo, logger *slog.Logger) ([]Device, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	var devices []Device
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			logger.Debug("skip input device", "path", p.Path, "err", err)
			continue
		}
		if !covers(dev.CapableEvents(evdev.EV_KEY), combo) {
			dev.Close()
			continue
		}
		logger.Info("watching keyboard", "path", p.Path, "name", p.Name)
		devices = append(devices, dev)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no readable keyboard supports %s (is the user in the input group?)", combo)
	}
	return devices, nil
}

func covers(caps []evdev.EvCode, combo Combo) bool {
	for _, c := range combo {
		if !slices.Contains(caps, c) {
			return false
		}
	}
	return true
}

type keyEvent struct {
	code  evdev.EvCode
	value int32
}

// Run calls fire each time the combo completes, until ctx is done. fire
// runs on the listener goroutine; slow handlers delay later presses.
func (l *Listener) Run(ctx context.Context, fire func()) error {
	if err := l.Open(); err != nil {
		return err
	}
	devices := l.devices
	l.devices = nil
	return l.run(ctx, devices, fire)
}

func (l *Listener) run(ctx context.Context, devices []Device, fire func()) error {
	events := make(chan keyEvent, 64)
	var wg sync.WaitGroup
	var readErrs atomic.Int32
	done := make(chan struct{})

	for _, dev := range devices {
		wg.Add(1)
		go func(dev Device) {
			defer wg.Done()
			for {
				ev, err := dev.ReadOne()
				if err != nil {
					select {
					case <-ctx.Done():
					default:
						l.logger.Warn("keyboard read failed", "err", err)
						readErrs.Add(1)
					}
					return
				}
				if ev.Type != evdev.EV_KEY {
					continue
				}
				select {
				case events <- keyEvent{code: ev.Code, value: ev.Value}:
				case <-ctx.Done():
					return
				}
			}
		}(dev)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	defer func() {
		for _, dev := range devices {
			dev.Close()
		}
		<-done
	}()

	tracker := NewTracker(l.combo)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			if readErrs.Load() > 0 {
				return errors.New("all keyboards stopped reporting")
			}
			return nil
		case ev := <-events:
			if l.debug {
				l.logger.Info("key", "code", int(ev.code), "name", keyName(ev.code), "value", ev.value)
				continue
			}
			if tracker.Feed(ev.code, ev.value) {
				l.logger.Debug("hotkey pressed", "combo", l.combo.String())
				fire()
			}
		}
	}
}
