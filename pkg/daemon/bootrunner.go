package daemon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/modoterra/fxswitch/pkg/boot"
	"github.com/modoterra/fxswitch/pkg/transport/uds"
)

// Broadcaster pushes events to connected clients.
type Broadcaster interface {
	Broadcast(msg uds.Message)
}

// BootRunner runs the boot sequence in the background, at most once at a time.
type BootRunner struct {
	seq    *boot.Sequencer
	events Broadcaster
	onDone func(done bool)
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewBootRunner creates a runner for seq.
func NewBootRunner(seq *boot.Sequencer, events Broadcaster, logger *slog.Logger) *BootRunner {
	return &BootRunner{seq: seq, events: events, logger: logger}
}

// Trigger starts a boot sequence unless one is already running and reports
// whether it did. The run lives until it completes or ctx is cancelled.
func (r *BootRunner) Trigger(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.logger.Debug("boot already running")
		return false
	}
	r.running = true
	r.wg.Add(1)
	if r.onDone != nil {
		r.onDone(false)
	}

	go func() {
		defer r.wg.Done()
		st, err := r.seq.Run(ctx)
		if err != nil {
			r.logger.Info("boot sequence stopped", "err", err, "attempts", st.Attempts)
		}

		r.mu.Lock()
		r.running = false
		r.mu.Unlock()

		if r.onDone != nil {
			r.onDone(st.Done())
		}
		if evt, err := uds.NewEvent(uds.EventBootState, r.Status()); err == nil {
			r.events.Broadcast(evt)
		}
	}()
	return true
}

// Running reports whether a sequence is in progress.
func (r *BootRunner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Status returns the current boot state.
func (r *BootRunner) Status() uds.BootStatus {
	st := r.seq.State()
	return uds.BootStatus{
		Running:          r.Running(),
		OutputConfigured: st.OutputConfigured,
		InputConfigured:  st.InputConfigured,
		Attempts:         st.Attempts,
		LastError:        st.LastError,
	}
}

// Wait blocks until the running sequence, if any, has returned.
func (r *BootRunner) Wait() {
	r.wg.Wait()
}
