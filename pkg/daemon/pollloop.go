package daemon

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/switcher"
	"github.com/modoterra/fxswitch/pkg/transport/uds"
)

// Snapshotter reports the current route.
type Snapshotter interface {
	Snapshot(ctx context.Context) (switcher.Snapshot, error)
}

// PollLoop snapshots the route every interval and broadcasts changes, so
// clients see moves made outside fxswitch (pavucontrol, a replugged card).
type PollLoop struct {
	source   Snapshotter
	events   Broadcaster
	interval time.Duration
	kick     chan struct{}
	logger   *slog.Logger

	last    *uds.RouteEvent
	lastErr string
}

// NewPollLoop creates a poll loop.
func NewPollLoop(source Snapshotter, events Broadcaster, interval time.Duration, logger *slog.Logger) *PollLoop {
	return &PollLoop{
		source:   source,
		events:   events,
		interval: interval,
		kick:     make(chan struct{}, 1),
		logger:   logger,
	}
}

// Kick requests an immediate poll.
func (pl *PollLoop) Kick() {
	select {
	case pl.kick <- struct{}{}:
	default:
	}
}

// Run starts the poll loop. Blocks until ctx is cancelled.
func (pl *PollLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(pl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pl.tick(ctx)
		case <-pl.kick:
			pl.tick(ctx)
		}
	}
}

func (pl *PollLoop) tick(ctx context.Context) {
	snap, err := pl.source.Snapshot(ctx)
	if err != nil {
		// Log each distinct failure once; pactl is down while the server restarts.
		if msg := err.Error(); msg != pl.lastErr {
			pl.logger.Warn("route snapshot failed", "err", err)
			pl.lastErr = msg
		}
		return
	}
	pl.lastErr = ""

	next := uds.RouteEvent{Sinks: snap.Sinks, Current: snap.Current}
	if pl.last != nil && !routeChanged(*pl.last, next) {
		return
	}
	pl.last = &next

	evt, err := uds.NewEvent(uds.EventRouteChanged, next)
	if err != nil {
		pl.logger.Error("route event", "err", err)
		return
	}
	pl.logger.Debug("route changed", "current", next.Current, "sinks", len(next.Sinks))
	pl.events.Broadcast(evt)
}

func routeChanged(a, b uds.RouteEvent) bool {
	if a.Current != b.Current {
		return true
	}
	return !slices.EqualFunc(a.Sinks, b.Sinks, func(x, y core.Sink) bool { return x == y })
}
