package daemon

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"
)

// defaultSettle is how long a new sound card gets to finish registering
// with the audio server before the boot sequence runs.
const defaultSettle = 3 * time.Second

// hotplugMonitor listens for udev sound card events and re-runs the boot
// sequence, so a replugged USB card gets the managed stream back.
type hotplugMonitor struct {
	logger  *slog.Logger
	trigger func(ctx context.Context)
	settle  time.Duration

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	timer   *time.Timer
}

func newHotplugMonitor(logger *slog.Logger, trigger func(ctx context.Context)) *hotplugMonitor {
	return &hotplugMonitor{logger: logger, trigger: trigger, settle: defaultSettle}
}

// Start begins listening for udev netlink events. A missing netlink socket
// only disables hotplug handling.
func (m *hotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("netlink connect failed; sound card hotplug disabled", "err", err)
		return nil
	}
	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)
	m.logger.Info("hotplug monitor started")
	return nil
}

// Stop shuts down the monitor.
func (m *hotplugMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.running = false
	m.logger.Info("hotplug monitor stopped")
}

// Running reports whether the monitor is active.
func (m *hotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *hotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildSoundMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error", "err", err)
		}
	}
}

// buildSoundMatcher matches SUBSYSTEM=sound, ACTION=add|change.
func buildSoundMatcher() netlink.Matcher {
	action := "add|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "sound",
		},
	})
	return rules
}

// handleEvent schedules a boot run for card-level events. A card produces a
// burst of events (controlC0, pcmC0D0p, ...); the settle timer collapses
// them into one run.
func (m *hotplugMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	card := cardName(uevent)
	if card == "" {
		return
	}
	m.logger.Info("sound card event", "card", card, "action", string(uevent.Action))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.settle, func() {
		if ctx.Err() != nil {
			return
		}
		m.trigger(ctx)
	})
}

// cardName returns "cardN" for events on the card device itself.
func cardName(uevent netlink.UEvent) string {
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		devpath = uevent.KObj
	}
	base := path.Base(devpath)
	if !strings.HasPrefix(base, "card") || len(base) == len("card") {
		return ""
	}
	return base
}
