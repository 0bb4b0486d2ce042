// Package testsupport provides fakes and fixtures shared by package tests.
package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/pactl"
)

// FakeRunner answers commands from a script keyed by the full command line
// ("pactl list sinks"). Unknown commands fail the Run call.
type FakeRunner struct {
	mu      sync.Mutex
	results map[string][]fakeResult
	calls   []string
}

type fakeResult struct {
	res pactl.Result
	err error
}

// NewFakeRunner returns an empty fake.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{results: make(map[string][]fakeResult)}
}

// On queues a result for the command line. Queued results are consumed in
// order; the last one repeats.
func (f *FakeRunner) On(cmdline string, res pactl.Result) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[cmdline] = append(f.results[cmdline], fakeResult{res: res})
	return f
}

// OnStdout queues a successful result with the given stdout.
func (f *FakeRunner) OnStdout(cmdline, stdout string) *FakeRunner {
	return f.On(cmdline, pactl.Result{Stdout: stdout})
}

// OnError queues a start failure for the command line.
func (f *FakeRunner) OnError(cmdline string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[cmdline] = append(f.results[cmdline], fakeResult{err: err})
	return f
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (pactl.Result, error) {
	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmdline)

	queue, ok := f.results[cmdline]
	if !ok || len(queue) == 0 {
		return pactl.Result{}, fmt.Errorf("fake runner: unexpected command %q", cmdline)
	}
	next := queue[0]
	if len(queue) > 1 {
		f.results[cmdline] = queue[1:]
	}
	return next.res, next.err
}

// Calls returns every command line run so far.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many times cmdline was run.
func (f *FakeRunner) Count(cmdline string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == cmdline {
			n++
		}
	}
	return n
}

// SinksText renders sinks in the "pactl list sinks" layout the parser reads.
func SinksText(sinks ...core.Sink) string {
	var b strings.Builder
	for i, s := range sinks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Sink #%d\n", s.Index)
		fmt.Fprintf(&b, "\tState %s\n", s.State.Code())
		fmt.Fprintf(&b, "\tName %s\n", s.Name)
		fmt.Fprintf(&b, "\tDescription: %s\n", s.Description)
		b.WriteString("\tDriver: module-alsa-card.c\n")
	}
	return b.String()
}

// SinkInputsText renders inputs in the "pacmd list-sink-inputs" layout.
func SinkInputsText(inputs ...core.SinkInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d sink input(s) available.\n", len(inputs))
	for _, in := range inputs {
		fmt.Fprintf(&b, "    index: %d\n", in.Index)
		b.WriteString("\tdriver: <protocol-native.c>\n")
		if in.Sink != core.NoSink {
			fmt.Fprintf(&b, "\tsink: %d <alsa_output.sink>\n", in.Sink)
		}
		b.WriteString("\tproperties:\n")
		if in.MediaName != "" {
			fmt.Fprintf(&b, "\t\tmedia.name = \"%s\"\n", in.MediaName)
		}
		if in.AppName != "" {
			fmt.Fprintf(&b, "\t\tapplication.name = \"%s\"\n", in.AppName)
		}
		if in.AppID != "" {
			fmt.Fprintf(&b, "\t\tapplication.id = \"%s\"\n", in.AppID)
		}
	}
	return b.String()
}

// Effects is the managed output identity used across tests.
var Effects = core.StreamIdentity{
	AppName:   "PulseEffects",
	MediaName: "Playback Stream",
	AppID:     "com.github.wwmm.pulseeffects",
}

// EffectsMic is the managed mic identity used across tests.
var EffectsMic = core.StreamIdentity{
	AppName:   "PulseEffects",
	MediaName: "Recording Stream",
	AppID:     "com.github.wwmm.pulseeffects",
}
