package switcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/pactl"
	"github.com/modoterra/fxswitch/pkg/selector"
)

// Targets describes what the router manages.
type Targets struct {
	Outputs []string            // allow-listed sink descriptions
	Output  core.StreamIdentity // managed playback stream
	Input   core.StreamIdentity // managed mic stream; zero when unused
}

// Recorder observes finished switch operations.
type Recorder interface {
	ObserveSwitch(op string, err error)
}

// Snapshot is the routing state at one point in time.
type Snapshot struct {
	Sinks   []core.Sink     `json:"sinks"`
	Output  *core.SinkInput `json:"output,omitempty"`
	Current int             `json:"current"`
}

// CurrentSink returns the valid sink the managed output is on, if any.
func (s Snapshot) CurrentSink() (core.Sink, bool) {
	for _, sink := range s.Sinks {
		if sink.Index == s.Current {
			return sink, true
		}
	}
	return core.Sink{}, false
}

// Router runs query-then-move chains. Calls are serialized, so a hotkey
// toggle never interleaves with a boot pass or a socket request.
type Router struct {
	mu       sync.Mutex
	client   *pactl.Client
	switcher *Switcher
	targets  Targets
	recorder Recorder
	logger   *slog.Logger
}

// NewRouter creates a router.
func NewRouter(client *pactl.Client, targets Targets, logger *slog.Logger) *Router {
	return &Router{
		client:   client,
		switcher: New(client, logger),
		targets:  targets,
		logger:   logger,
	}
}

// SetRecorder registers an observer for switch outcomes.
func (r *Router) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// HasInput reports whether a mic stream is managed.
func (r *Router) HasInput() bool {
	return !r.targets.Input.IsZero()
}

// Toggle moves the managed output stream to the other valid sink.
func (r *Router) Toggle(ctx context.Context) (core.Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := r.logger.With("op", uuid.NewString())
	target, err := r.toggle(ctx, logger)
	r.observe("toggle", err)
	if err != nil {
		return core.Sink{}, err
	}
	logger.Info("output toggled", "sink", target.Index, "description", target.Description)
	return target, nil
}

func (r *Router) toggle(ctx context.Context, logger *slog.Logger) (core.Sink, error) {
	valid, err := r.validSinks(ctx)
	if err != nil {
		return core.Sink{}, err
	}
	stream, err := r.findStream(ctx, core.RoleOutput)
	if err != nil {
		return core.Sink{}, err
	}
	target, err := selector.PickAlternateSink(valid, stream.Sink)
	if err != nil {
		return core.Sink{}, err
	}
	logger.Debug("toggling", "stream", stream.Index, "from", stream.Sink, "to", target.Index)
	if err := r.switcher.MoveStreamToSink(ctx, stream.Index, target.Index); err != nil {
		return core.Sink{}, err
	}
	return target, nil
}

// Route moves the managed stream for role to the sink with the given
// description. Output targets must be allow-listed; input targets may be any
// sink, since the mic stream usually feeds a virtual sink.
func (r *Router) Route(ctx context.Context, role core.Role, description string) (core.Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := r.logger.With("op", uuid.NewString(), "role", role)
	target, err := r.route(ctx, role, description)
	r.observe("route-"+string(role), err)
	if err != nil {
		return core.Sink{}, err
	}
	logger.Info("stream routed", "sink", target.Index, "description", target.Description)
	return target, nil
}

func (r *Router) route(ctx context.Context, role core.Role, description string) (core.Sink, error) {
	var candidates []core.Sink
	var err error
	switch role {
	case core.RoleOutput:
		candidates, err = r.validSinks(ctx)
	case core.RoleInput:
		candidates, err = r.client.ListSinks(ctx)
	default:
		return core.Sink{}, fmt.Errorf("unknown role %q", role)
	}
	if err != nil {
		return core.Sink{}, err
	}
	target, err := selector.PickByDescription(candidates, description)
	if err != nil {
		return core.Sink{}, err
	}
	stream, err := r.findStream(ctx, role)
	if err != nil {
		return core.Sink{}, err
	}
	if err := r.switcher.MoveStreamToSink(ctx, stream.Index, target.Index); err != nil {
		return core.Sink{}, err
	}
	return target, nil
}

// Snapshot reports the valid sinks and where the managed output currently
// plays. A missing output stream is not an error.
func (r *Router) Snapshot(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	valid, err := r.validSinks(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Sinks: valid, Current: core.NoSink}

	inputs, err := r.client.ListSinkInputs(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if stream, err := selector.FindManagedStreamInput(inputs, r.targets.Output, core.RoleOutput); err == nil {
		snap.Output = &stream
		snap.Current = stream.Sink
	}
	return snap, nil
}

func (r *Router) validSinks(ctx context.Context) ([]core.Sink, error) {
	all, err := r.client.ListSinks(ctx)
	if err != nil {
		return nil, err
	}
	return selector.ValidSinks(all, r.targets.Outputs), nil
}

func (r *Router) findStream(ctx context.Context, role core.Role) (core.SinkInput, error) {
	id := r.targets.Output
	if role == core.RoleInput {
		id = r.targets.Input
	}
	inputs, err := r.client.ListSinkInputs(ctx)
	if err != nil {
		return core.SinkInput{}, err
	}
	return selector.FindManagedStreamInput(inputs, id, role)
}

func (r *Router) observe(op string, err error) {
	if r.recorder != nil {
		r.recorder.ObserveSwitch(op, err)
	}
}
