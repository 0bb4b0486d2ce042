// Package daemon runs fxswitchd: the hotkey, the boot sequence, the socket
// API and the background monitors around one switcher.Router.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"github.com/modoterra/fxswitch/pkg/boot"
	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/hotkey"
	"github.com/modoterra/fxswitch/pkg/metrics"
	"github.com/modoterra/fxswitch/pkg/procfs"
	"github.com/modoterra/fxswitch/pkg/switcher"
	"github.com/modoterra/fxswitch/pkg/systemd"
	"github.com/modoterra/fxswitch/pkg/transport/uds"
)

// UnitLister reports the state of related systemd units.
type UnitLister interface {
	List(ctx context.Context) ([]systemd.Unit, error)
}

// Options wires the daemon's collaborators. Nil optional fields disable
// the matching feature.
type Options struct {
	SocketPath   string
	Router       *switcher.Router
	Sequencer    *boot.Sequencer
	Hotkey       *hotkey.Listener // optional
	PollInterval time.Duration    // zero disables the poll loop
	Hotplug      bool

	EffectsProcess string
	Effects        *procfs.Finder // optional
	Supervisor     *Supervisor    // optional; launches the effects processor
	Units          UnitLister     // optional

	Metrics       *metrics.Metrics // optional
	MetricsListen string

	Version string
}

// Daemon is the fxswitchd process.
type Daemon struct {
	opts    Options
	server  *uds.Server
	router  *switcher.Router
	boot    *BootRunner
	poll    *PollLoop
	hotplug *hotplugMonitor
	notify  func(state string)
	logger  *slog.Logger
}

// New creates a daemon instance.
func New(opts Options, logger *slog.Logger) *Daemon {
	srv := uds.NewServer(opts.SocketPath, logger)
	d := &Daemon{
		opts:   opts,
		server: srv,
		router: opts.Router,
		logger: logger,
	}
	d.notify = d.sdNotify

	if opts.Metrics != nil {
		opts.Router.SetRecorder(opts.Metrics)
		opts.Sequencer.SetObserver(opts.Metrics)
	}
	d.boot = NewBootRunner(opts.Sequencer, srv, logger)
	d.boot.onDone = func(done bool) {
		if opts.Metrics != nil {
			opts.Metrics.BootDone(done)
		}
		if done {
			d.notify("STATUS=booted")
		}
	}
	if opts.Supervisor != nil {
		opts.Supervisor.OnStart = func(ctx context.Context) {
			d.boot.Trigger(ctx)
		}
	}
	if opts.PollInterval > 0 {
		d.poll = NewPollLoop(opts.Router, srv, opts.PollInterval, logger)
	}
	if opts.Hotplug {
		d.hotplug = newHotplugMonitor(logger, func(ctx context.Context) {
			d.boot.Trigger(ctx)
		})
	}

	d.registerHandlers()
	return d
}

// Server returns the underlying UDS server (for broadcasting events).
func (d *Daemon) Server() *uds.Server {
	return d.server
}

// Boot returns the boot runner.
func (d *Daemon) Boot() *BootRunner {
	return d.boot
}

// Run starts every component and blocks until ctx is cancelled. It returns
// an error only if the socket cannot be served.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- d.server.Start(ctx)
	}()
	select {
	case <-d.server.Ready():
	case err := <-errc:
		return err
	}

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				d.logger.Error("component stopped", "component", name, "err", err)
			}
		}()
	}

	if d.opts.Hotkey != nil {
		start("hotkey", func(ctx context.Context) error {
			return d.opts.Hotkey.Run(ctx, func() { d.HandleHotkey(ctx) })
		})
	}
	if d.opts.Supervisor != nil {
		start("supervisor", d.opts.Supervisor.Run)
	}
	if d.poll != nil {
		start("poll", func(ctx context.Context) error {
			d.poll.Run(ctx)
			return nil
		})
	}
	if d.hotplug != nil {
		start("hotplug", func(ctx context.Context) error {
			if err := d.hotplug.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			d.hotplug.Stop()
			return nil
		})
	}
	if d.opts.Metrics != nil && d.opts.MetricsListen != "" {
		start("metrics", func(ctx context.Context) error {
			return d.opts.Metrics.Serve(ctx, d.opts.MetricsListen, d.logger)
		})
	}

	d.boot.Trigger(ctx)
	d.notify(sddaemon.SdNotifyReady)
	d.notify("STATUS=booting")
	d.logger.Info("daemon ready", "socket", d.opts.SocketPath, "version", d.opts.Version)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	d.notify(sddaemon.SdNotifyStopping)
	cancel()
	d.server.Shutdown()
	d.boot.Wait()
	wg.Wait()
	return err
}

// HandleHotkey toggles the output. Failures are logged and the hotkey
// stays armed.
func (d *Daemon) HandleHotkey(ctx context.Context) {
	if d.opts.Metrics != nil {
		d.opts.Metrics.HotkeyPressed()
	}
	sink, err := d.router.Toggle(ctx)
	if err != nil {
		d.logger.Error("toggle failed", "err", err)
		return
	}
	d.notify("STATUS=output: " + sink.Description)
	d.kickPoll()
}

func (d *Daemon) kickPoll() {
	if d.poll != nil {
		d.poll.Kick()
	}
}

func (d *Daemon) sdNotify(state string) {
	sent, err := sddaemon.SdNotify(false, state)
	if err != nil {
		d.logger.Warn("sd_notify failed", "state", state, "err", err)
		return
	}
	if sent {
		d.logger.Debug("sd_notify", "state", state)
	}
}

func (d *Daemon) registerHandlers() {
	d.server.Handle(uds.MethodPing, d.handlePing)
	d.server.Handle(uds.MethodStatus, d.handleStatus)
	d.server.Handle(uds.MethodToggle, d.handleToggle)
	d.server.Handle(uds.MethodSetOutput, d.handleSetOutput)
	d.server.Handle(uds.MethodBoot, d.handleBoot)
}

func (d *Daemon) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true, Version: d.opts.Version}, nil
}

func (d *Daemon) handleStatus(ctx context.Context, _ uds.Message) (any, error) {
	resp := uds.StatusResponse{
		Current:        core.NoSink,
		Boot:           d.boot.Status(),
		EffectsProcess: d.opts.EffectsProcess,
	}

	snap, err := d.router.Snapshot(ctx)
	if err != nil {
		resp.RouteError = err.Error()
	} else {
		resp.Sinks = snap.Sinks
		resp.Output = snap.Output
		resp.Current = snap.Current
	}

	if d.opts.Effects != nil && d.opts.EffectsProcess != "" {
		pids, err := d.opts.Effects.Find(d.opts.EffectsProcess)
		if err != nil {
			d.logger.Warn("effects process lookup", "err", err)
		}
		resp.EffectsPIDs = pids
	}
	if d.opts.Supervisor != nil {
		resp.EffectsState, _, _ = d.opts.Supervisor.Status()
	}

	if d.opts.Units != nil {
		units, err := d.opts.Units.List(ctx)
		if err != nil {
			d.logger.Warn("unit status lookup", "err", err)
		}
		for _, u := range units {
			resp.Units = append(resp.Units, uds.UnitStatus{Name: u.Name, ActiveState: u.ActiveState, SubState: u.SubState})
		}
	}
	return resp, nil
}

func (d *Daemon) handleToggle(ctx context.Context, _ uds.Message) (any, error) {
	sink, err := d.router.Toggle(ctx)
	if err != nil {
		return nil, err
	}
	d.kickPoll()
	return uds.SinkResponse{Sink: sink}, nil
}

func (d *Daemon) handleSetOutput(ctx context.Context, msg uds.Message) (any, error) {
	var req uds.SetOutputRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if req.Description == "" {
		return nil, fmt.Errorf("description is required")
	}
	sink, err := d.router.Route(ctx, core.RoleOutput, req.Description)
	if err != nil {
		return nil, err
	}
	d.kickPoll()
	return uds.SinkResponse{Sink: sink}, nil
}

func (d *Daemon) handleBoot(ctx context.Context, _ uds.Message) (any, error) {
	started := d.boot.Trigger(ctx)
	return uds.BootResponse{Started: started, State: d.boot.Status()}, nil
}
