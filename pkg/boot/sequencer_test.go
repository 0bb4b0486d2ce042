package boot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/pactl"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptRouter fails the first failures[role] calls for each role.
type scriptRouter struct {
	mu       sync.Mutex
	failures map[core.Role]int
	calls    map[core.Role]int
}

func newScriptRouter(output, input int) *scriptRouter {
	return &scriptRouter{
		failures: map[core.Role]int{core.RoleOutput: output, core.RoleInput: input},
		calls:    map[core.Role]int{},
	}
}

func (r *scriptRouter) Route(_ context.Context, role core.Role, description string) (core.Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[role]++
	if r.calls[role] <= r.failures[role] {
		return core.Sink{}, &core.NotFoundError{What: "stream", Role: role, Want: "a=PulseEffects"}
	}
	return core.Sink{Index: 1, Description: description}, nil
}

func (r *scriptRouter) count(role core.Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[role]
}

type nopPrimer struct{}

func (nopPrimer) Announce(context.Context) pactl.BestEffort    { return pactl.BestEffort{Skipped: true} }
func (nopPrimer) ActivateMic(context.Context) pactl.BestEffort { return pactl.BestEffort{Skipped: true} }

type recordSleep struct {
	slept []time.Duration
}

func (r *recordSleep) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return ctx.Err()
}

type passCounter struct {
	passes, failed int
}

func (p *passCounter) ObserveBootPass(err error) {
	p.passes++
	if err != nil {
		p.failed++
	}
}

func TestRunRetriesUntilBothMilestones(t *testing.T) {
	router := newScriptRouter(2, 0)
	rec := &recordSleep{}
	obs := &passCounter{}

	seq := New(router, nopPrimer{}, Options{
		Output: "Digital",
		Input:  "Virtual",
		Sleep:  rec.sleep,
	}, testLogger)
	seq.SetObserver(obs)

	st, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !st.Done() || st.Attempts != 3 {
		t.Fatalf("state = %+v, want done after 3 attempts", st)
	}
	if len(rec.slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(rec.slept))
	}
	if rec.slept[0] != 11*time.Second || rec.slept[1] != 12*time.Second {
		t.Errorf("delays = %v, want [11s 12s]", rec.slept)
	}
	// The input succeeded on the first pass and is not retried.
	if got := router.count(core.RoleInput); got != 1 {
		t.Errorf("input routed %d times, want 1", got)
	}
	if got := router.count(core.RoleOutput); got != 3 {
		t.Errorf("output routed %d times, want 3", got)
	}
	if obs.passes != 3 || obs.failed != 2 {
		t.Errorf("observer = %+v, want 3 passes, 2 failed", obs)
	}
	if st.LastError != "" {
		t.Errorf("LastError = %q, want empty", st.LastError)
	}
	if seq.State() != st {
		t.Errorf("State() = %+v, want %+v", seq.State(), st)
	}
}

func TestRunDelaysCapped(t *testing.T) {
	router := newScriptRouter(8, 0)
	rec := &recordSleep{}

	seq := New(router, nopPrimer{}, Options{Output: "Digital", Sleep: rec.sleep}, testLogger)
	if _, err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []time.Duration{11, 12, 13, 14, 15, 15, 15, 15}
	if len(rec.slept) != len(want) {
		t.Fatalf("slept %v, want %d sleeps", rec.slept, len(want))
	}
	for i, w := range want {
		if rec.slept[i] != w*time.Second {
			t.Errorf("sleep %d = %v, want %v", i, rec.slept[i], w*time.Second)
		}
	}
}

func TestRunWithoutInputSkipsMic(t *testing.T) {
	router := newScriptRouter(0, 0)
	seq := New(router, nopPrimer{}, Options{Output: "Digital", Sleep: (&recordSleep{}).sleep}, testLogger)

	st, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !st.InputConfigured || st.Attempts != 1 {
		t.Errorf("state = %+v", st)
	}
	if got := router.count(core.RoleInput); got != 0 {
		t.Errorf("input routed %d times, want 0", got)
	}
}

func TestRunBootDelay(t *testing.T) {
	rec := &recordSleep{}
	seq := New(newScriptRouter(0, 0), nil, Options{Output: "Digital", Delay: time.Second, Sleep: rec.sleep}, testLogger)

	if _, err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.slept) != 1 || rec.slept[0] != time.Second {
		t.Errorf("slept = %v, want [1s]", rec.slept)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	seq := New(newScriptRouter(100, 0), nopPrimer{}, Options{Output: "Digital", Sleep: sleep}, testLogger)

	st, err := seq.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if st.Done() || st.Attempts != 1 {
		t.Errorf("state = %+v", st)
	}
	if st.LastError == "" {
		t.Error("LastError is empty after a failed pass")
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep = %v, want context.Canceled", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep = %v", err)
	}
}
