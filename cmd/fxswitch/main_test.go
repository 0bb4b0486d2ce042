package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modoterra/fxswitch/internal/testsupport"
	"github.com/modoterra/fxswitch/pkg/config"
	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/pactl"
	"github.com/modoterra/fxswitch/pkg/transport/uds"
)

var (
	analog  = core.Sink{Index: 0, Name: "alsa_output.usb", Description: config.AnalogOutput, State: core.StateRunning}
	digital = core.Sink{Index: 1, Name: "alsa_output.pci", Description: config.DigitalOutput, State: core.StateIdle}
	hdmi    = core.Sink{Index: 2, Name: "alsa_output.hdmi", Description: "HDMI", State: core.StateIdle}
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// fakePulse installs a fake runner with the effects stream on the analog sink.
func fakePulse(t *testing.T) *testsupport.FakeRunner {
	t.Helper()
	stream := core.SinkInput{
		Index:     12,
		Sink:      analog.Index,
		AppName:   testsupport.Effects.AppName,
		MediaName: testsupport.Effects.MediaName,
		AppID:     testsupport.Effects.AppID,
	}
	fake := testsupport.NewFakeRunner().
		OnStdout("pactl list sinks", testsupport.SinksText(analog, digital, hdmi)).
		OnStdout("pacmd list-sink-inputs", testsupport.SinkInputsText(stream)).
		OnStdout("pacmd move-sink-input 12 1", "").
		OnStdout("pacmd move-sink-input 12 0", "")
	runner = fake
	t.Cleanup(func() { runner = nil })
	return fake
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "fxswitch ") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	path := missingConfig(t)
	if _, err := execute(t, "config", "init", path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), config.DigitalOutput) {
		t.Errorf("generated config misses the boot output:\n%s", data)
	}

	out, err := execute(t, "config", "validate", path)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "valid (2 outputs)") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "config", "init", path); err == nil {
		t.Error("init overwrote an existing file without --force")
	}
}

func TestConfigValidateInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := []byte(`version: 2
outputs: [A]
boot:
  output: B
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "config", "validate", path)
	if err == nil {
		t.Fatal("expected an error for an invalid config")
	}
	if !strings.Contains(out, "error(s)") {
		t.Errorf("output = %q", out)
	}
}

func TestToggleDirect(t *testing.T) {
	fake := fakePulse(t)
	out, err := execute(t, "--config", missingConfig(t), "toggle", "--direct")
	if err != nil {
		t.Fatalf("toggle: %v\n%s", err, out)
	}
	if !strings.Contains(out, config.DigitalOutput) {
		t.Errorf("output = %q", out)
	}
	if fake.Count("pacmd move-sink-input 12 1") != 1 {
		t.Errorf("calls = %v", fake.Calls())
	}
}

// deadlineRunner records whether any command ran under a deadline.
type deadlineRunner struct {
	pactl.Runner
	deadlines int
}

func (d *deadlineRunner) Run(ctx context.Context, name string, args ...string) (pactl.Result, error) {
	if _, ok := ctx.Deadline(); ok {
		d.deadlines++
	}
	return d.Runner.Run(ctx, name, args...)
}

func TestDirectCommandsHaveNoDeadline(t *testing.T) {
	for _, args := range [][]string{
		{"toggle", "--direct"},
		{"set", "--direct", config.DigitalOutput},
	} {
		t.Run(args[0], func(t *testing.T) {
			rec := &deadlineRunner{Runner: fakePulse(t)}
			runner = rec
			out, err := execute(t, append([]string{"--config", missingConfig(t)}, args...)...)
			if err != nil {
				t.Fatalf("%s: %v\n%s", args[0], err, out)
			}
			if rec.deadlines != 0 {
				t.Errorf("%d command(s) ran with a deadline", rec.deadlines)
			}
		})
	}
}

func TestSetDirectRejectsUnlisted(t *testing.T) {
	fakePulse(t)
	_, err := execute(t, "--config", missingConfig(t), "set", "--direct", "HDMI")
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDirectRejectsInvalidConfig(t *testing.T) {
	fake := fakePulse(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`boot:
  input: PulseEffects(mic)
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "--config", path, "toggle", "--direct")
	if err == nil || !strings.Contains(err.Error(), "boot.input is set but streams.input is empty") {
		t.Fatalf("err = %v, want a validation error", err)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("pulse was queried: %v", calls)
	}
}

func TestSinksJSON(t *testing.T) {
	fakePulse(t)
	out, err := execute(t, "--config", missingConfig(t), "sinks", "--json", "--all=false")
	if err != nil {
		t.Fatal(err)
	}
	var sinks []core.Sink
	if err := json.Unmarshal([]byte(out), &sinks); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(sinks) != 2 {
		t.Errorf("got %d sinks, want the 2 allow-listed ones", len(sinks))
	}
}

func TestSinksPlainMarksCurrent(t *testing.T) {
	fakePulse(t)
	out, err := execute(t, "--config", missingConfig(t), "sinks", "--json=false", "--all")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if want := "*\t0\tRUNNING\t" + config.AnalogOutput; lines[0] != want {
		t.Errorf("line 0 = %q, want %q", lines[0], want)
	}
	if !strings.HasPrefix(lines[2], "\t2\tIDLE\tHDMI") {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestInputsMarksManaged(t *testing.T) {
	fakePulse(t)
	out, err := execute(t, "--config", missingConfig(t), "inputs", "--json=false")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "\toutput") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"INDEX", "DESCRIPTION"}, [][]string{{"1", "Digital"}}, []columnAlignment{alignRight})
	for _, want := range []string{"INDEX", "DESCRIPTION", "Digital"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, uds.StatusResponse{
		Sinks:          []core.Sink{analog, digital},
		Current:        1,
		Output:         &core.SinkInput{Index: 12, AppName: "PulseEffects", MediaName: "Playback Stream", Sink: 1},
		Boot:           uds.BootStatus{Running: true, Attempts: 3, LastError: "stream output not found"},
		EffectsProcess: "pulseeffects",
		EffectsPIDs:    []int{42},
		Units:          []uds.UnitStatus{{Name: "pulseaudio.service", ActiveState: "active", SubState: "running"}},
	})
	out := buf.String()
	for _, want := range []string{
		"output:  " + config.DigitalOutput,
		"stream:  #12 PulseEffects",
		"boot:    running (attempt 3): stream output not found",
		"effects: pulseeffects running (pid 42)",
		"unit:    pulseaudio.service active/running",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestPrintEventRoute(t *testing.T) {
	evt, err := uds.NewEvent(uds.EventRouteChanged, uds.RouteEvent{Sinks: []core.Sink{analog, digital}, Current: 0})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	printEvent(&buf, evt)
	if !strings.Contains(buf.String(), "route  "+config.AnalogOutput+" (2 valid sinks)") {
		t.Errorf("output = %q", buf.String())
	}
}

