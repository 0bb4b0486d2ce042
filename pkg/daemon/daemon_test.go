package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/modoterra/fxswitch/internal/testsupport"
	"github.com/modoterra/fxswitch/pkg/boot"
	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/metrics"
	"github.com/modoterra/fxswitch/pkg/pactl"
	"github.com/modoterra/fxswitch/pkg/procfs"
	"github.com/modoterra/fxswitch/pkg/switcher"
	"github.com/modoterra/fxswitch/pkg/systemd"
	"github.com/modoterra/fxswitch/pkg/transport/uds"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeUnits struct{}

func (fakeUnits) List(context.Context) ([]systemd.Unit, error) {
	return []systemd.Unit{{Name: "pulseaudio.service", ActiveState: "active", SubState: "running"}}, nil
}

func newTestDaemon(t *testing.T, extra ...func(*Options)) (*Daemon, *testsupport.FakeRunner, *metrics.Metrics) {
	t.Helper()
	t.Setenv("NOTIFY_SOCKET", "")

	stream := core.SinkInput{Index: 12, AppName: "PulseEffects", MediaName: "Playback Stream", AppID: "com.github.wwmm.pulseeffects", Sink: 0}
	runner := testsupport.NewFakeRunner().
		OnStdout("pactl list sinks", testsupport.SinksText(analog, digital)).
		OnStdout("pacmd list-sink-inputs", testsupport.SinkInputsText(stream)).
		OnStdout("pacmd move-sink-input 12 1", "").
		OnStdout("pacmd move-sink-input 12 0", "")

	client := pactl.NewClient(runner, pactl.Commands{}, discard)
	router := switcher.NewRouter(client, switcher.Targets{
		Outputs: []string{"Analog Stereo", "Digital Stereo"},
		Output:  testsupport.Effects,
	}, discard)
	seq := boot.New(router, nil, boot.Options{
		Output: "Digital Stereo",
		Sleep:  func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}, discard)
	m := metrics.New()

	opts := Options{
		SocketPath:     filepath.Join(t.TempDir(), "fxswitch.sock"),
		Router:         router,
		Sequencer:      seq,
		PollInterval:   time.Hour,
		EffectsProcess: "pulseeffects",
		Effects:        procfs.New(t.TempDir()),
		Units:          fakeUnits{},
		Metrics:        m,
		Version:        "test",
	}
	for _, fn := range extra {
		fn(&opts)
	}
	d := New(opts, discard)
	return d, runner, m
}

func runDaemon(t *testing.T, d *Daemon) *uds.Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	select {
	case <-d.Server().Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("daemon socket never became ready")
	}
	client, err := uds.Dial(d.opts.SocketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func waitBooted(t *testing.T, client *uds.Client) uds.StatusResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		st, err := client.Status(ctx)
		cancel()
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if st.Boot.OutputConfigured && !st.Boot.Running {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("boot never completed: %+v", st.Boot)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemonBootsAndReportsStatus(t *testing.T) {
	d, runner, m := newTestDaemon(t)
	client := runDaemon(t, d)

	st := waitBooted(t, client)
	if runner.Count("pacmd move-sink-input 12 1") < 1 {
		t.Error("boot did not move the stream to the boot output")
	}
	if len(st.Sinks) != 2 || st.Current != 0 {
		t.Errorf("route = %+v current %d", st.Sinks, st.Current)
	}
	if st.EffectsProcess != "pulseeffects" || len(st.EffectsPIDs) != 0 {
		t.Errorf("effects = %q %v", st.EffectsProcess, st.EffectsPIDs)
	}
	if len(st.Units) != 1 || st.Units[0].ActiveState != "active" {
		t.Errorf("units = %+v", st.Units)
	}
	if got := testutil.ToFloat64(m.BootCompleted); got != 1 {
		t.Errorf("boot completed gauge = %v", got)
	}
}

func TestDaemonToggleAndSetOutput(t *testing.T) {
	d, runner, m := newTestDaemon(t)
	client := runDaemon(t, d)
	waitBooted(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Toggle(ctx)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if resp.Sink.Index != 1 {
		t.Errorf("toggle landed on %+v, want sink 1", resp.Sink)
	}

	resp, err = client.SetOutput(ctx, "Analog Stereo")
	if err != nil {
		t.Fatalf("set output: %v", err)
	}
	if resp.Sink.Index != 0 || runner.Count("pacmd move-sink-input 12 0") != 1 {
		t.Errorf("set output landed on %+v", resp.Sink)
	}

	_, err = client.SetOutput(ctx, "HDMI")
	if !errors.Is(err, uds.ErrServer) {
		t.Errorf("unlisted output err = %v", err)
	}
	if got := testutil.ToFloat64(m.SwitchErrors.WithLabelValues("route-output")); got != 1 {
		t.Errorf("route errors = %v, want 1", got)
	}
}

func TestDaemonPingAndBoot(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	client := runDaemon(t, d)
	waitBooted(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx)
	if err != nil || pong.Version != "test" {
		t.Fatalf("ping = %+v, %v", pong, err)
	}
	resp, err := client.Boot(ctx)
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if !resp.Started {
		t.Error("boot request after completion did not start a run")
	}
	waitBooted(t, client)
}

func TestHandleHotkeyLogsFailures(t *testing.T) {
	d, runner, m := newTestDaemon(t)
	runner.OnError("pactl list sinks", errors.New("pactl missing"))

	// Drain the queued success so the error is next.
	if _, err := pactl.NewClient(runner, pactl.Commands{}, discard).ListSinks(context.Background()); err != nil {
		t.Fatal(err)
	}
	d.HandleHotkey(context.Background())

	if got := testutil.ToFloat64(m.HotkeyPresses); got != 1 {
		t.Errorf("hotkey presses = %v", got)
	}
	if got := testutil.ToFloat64(m.SwitchErrors.WithLabelValues("toggle")); got != 1 {
		t.Errorf("toggle errors = %v, want 1", got)
	}
}

func TestDaemonReportsSupervisedEffects(t *testing.T) {
	sup := NewSupervisor("sleep 30", RestartNever, discard)
	d, _, _ := newTestDaemon(t, func(o *Options) { o.Supervisor = sup })
	if sup.OnStart == nil {
		t.Fatal("supervisor start hook not wired")
	}
	client := runDaemon(t, d)
	waitBooted(t, client)

	deadline := time.Now().Add(3 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		st, err := client.Status(ctx)
		cancel()
		if err != nil {
			t.Fatal(err)
		}
		if st.EffectsState == ProcRunning {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("effects state = %q, want running", st.EffectsState)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
