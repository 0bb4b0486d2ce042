// Package switcher moves the managed streams between sinks.
package switcher

import (
	"context"
	"log/slog"

	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/pactl"
)

// Switcher issues "move sink-input to sink" commands and classifies them.
type Switcher struct {
	client *pactl.Client
	logger *slog.Logger
}

// New creates a switcher backed by client.
func New(client *pactl.Client, logger *slog.Logger) *Switcher {
	return &Switcher{client: client, logger: logger}
}

// MoveStreamToSink moves a sink input. pacmd exits quietly on success and
// prints its complaint to stdout on failure, so any stdout at all is a
// failure, as is a non-zero exit.
func (s *Switcher) MoveStreamToSink(ctx context.Context, stream, sink int) error {
	res, err := s.client.MoveSinkInput(ctx, stream, sink)
	if err != nil {
		return &core.SwitchError{Stream: stream, Sink: sink, Err: err}
	}
	if res.Stdout != "" || res.ExitCode != 0 {
		s.logger.Error("move sink-input failed", "stream", stream, "sink", sink, "exit_code", res.ExitCode)
		return &core.SwitchError{Stream: stream, Sink: sink, Output: res.Stdout, ExitCode: res.ExitCode}
	}
	s.logger.Info("moved sink-input", "stream", stream, "sink", sink)
	return nil
}
