// Package boot establishes the initial output and mic routing at startup,
// retrying until both are in place.
package boot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/pactl"
)

// Router moves a managed stream to a sink by description.
type Router interface {
	Route(ctx context.Context, role core.Role, description string) (core.Sink, error)
}

// Primer issues the best-effort device priming calls.
type Primer interface {
	Announce(ctx context.Context) pactl.BestEffort
	ActivateMic(ctx context.Context) pactl.BestEffort
}

// Observer is told about every finished pass.
type Observer interface {
	ObserveBootPass(err error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options configures a Sequencer.
type Options struct {
	Output  string        // sink description for the managed output
	Input   string        // sink description for the mic stream; empty skips it
	Delay   time.Duration // wait before the first pass
	Backoff Backoff
	Sleep   SleepFunc
}

// State tracks the two boot milestones.
type State struct {
	OutputConfigured bool   `json:"output_configured"`
	InputConfigured  bool   `json:"input_configured"`
	Attempts         int    `json:"attempts"`
	LastError        string `json:"last_error,omitempty"`
}

// Done reports whether both milestones are reached.
func (s State) Done() bool {
	return s.OutputConfigured && s.InputConfigured
}

// Sequencer runs the boot passes. It never gives up on its own: the audio
// server and the effects processor may take a long time to appear after login.
type Sequencer struct {
	router   Router
	primer   Primer
	opts     Options
	observer Observer
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a sequencer. A nil Backoff means the original fixed policy
// (10s, +1s per failure, at most 15s); a nil Sleep means real time.
func New(router Router, primer Primer, opts Options, logger *slog.Logger) *Sequencer {
	if opts.Backoff == nil {
		opts.Backoff = Linear{Start: 10 * time.Second, Step: time.Second, Max: 15 * time.Second}
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	return &Sequencer{router: router, primer: primer, opts: opts, logger: logger}
}

// SetObserver registers an observer for finished passes.
func (s *Sequencer) SetObserver(o Observer) {
	s.observer = o
}

// State returns a copy of the current milestones.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes passes until both milestones are reached or ctx is done.
func (s *Sequencer) Run(ctx context.Context) (State, error) {
	logger := s.logger.With("op", uuid.NewString())

	st := State{InputConfigured: s.opts.Input == ""}
	s.publish(st)

	if s.opts.Delay > 0 {
		if err := s.opts.Sleep(ctx, s.opts.Delay); err != nil {
			return st, err
		}
	}

	delay := s.opts.Backoff.Initial()
	for {
		st.Attempts++
		err := s.pass(ctx, logger, &st)
		if err != nil {
			st.LastError = err.Error()
		} else {
			st.LastError = ""
		}
		s.publish(st)
		if s.observer != nil {
			s.observer.ObserveBootPass(err)
		}

		if st.Done() {
			logger.Info("booted up successfully", "attempts", st.Attempts)
			return st, nil
		}

		delay = s.opts.Backoff.Next(delay)
		logger.Warn("failed boot, trying again", "delay", delay, "attempt", st.Attempts, "err", err)
		if err := s.opts.Sleep(ctx, delay); err != nil {
			return st, err
		}
	}
}

func (s *Sequencer) pass(ctx context.Context, logger *slog.Logger, st *State) error {
	var errs []error

	if !st.OutputConfigured {
		if s.primer != nil {
			s.fire(ctx, logger, s.primer.Announce)
		}
		if _, err := s.router.Route(ctx, core.RoleOutput, s.opts.Output); err != nil {
			errs = append(errs, err)
		} else {
			st.OutputConfigured = true
			logger.Info("boot output configured", "description", s.opts.Output)
		}
	}

	if !st.InputConfigured {
		if s.primer != nil {
			s.fire(ctx, logger, s.primer.ActivateMic)
		}
		if _, err := s.router.Route(ctx, core.RoleInput, s.opts.Input); err != nil {
			errs = append(errs, err)
		} else {
			st.InputConfigured = true
			logger.Info("boot input configured", "description", s.opts.Input)
		}
	}

	return errors.Join(errs...)
}

// fire runs a priming call in the background; its outcome is only logged.
func (s *Sequencer) fire(ctx context.Context, logger *slog.Logger, call func(context.Context) pactl.BestEffort) {
	go func() {
		call(ctx).Log(logger)
	}()
}

func (s *Sequencer) publish(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
