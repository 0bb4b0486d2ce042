package pactl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// BestEffort is the outcome of a priming command. Priming only coaxes the
// audio server into enumerating devices, so callers log it and carry on.
type BestEffort struct {
	Command string
	Skipped bool
	Err     error
}

// Log records the outcome at a level matching its severity.
func (b BestEffort) Log(logger *slog.Logger) {
	switch {
	case b.Skipped:
	case b.Err != nil:
		logger.Warn("priming command failed", "command", b.Command, "err", b.Err)
	default:
		logger.Debug("priming command finished", "command", b.Command)
	}
}

// Primer issues the best-effort announcement and microphone calls.
type Primer struct {
	client       *Client
	announcement string
	micDuration  time.Duration
}

// NewPrimer creates a primer. An empty announcement or zero mic duration
// disables the respective call.
func NewPrimer(client *Client, announcement string, micDuration time.Duration) *Primer {
	return &Primer{client: client, announcement: announcement, micDuration: micDuration}
}

// Announce plays the configured announcement file.
func (p *Primer) Announce(ctx context.Context) BestEffort {
	if p.announcement == "" {
		return BestEffort{Skipped: true}
	}
	args := []string{p.announcement}
	b := BestEffort{Command: commandLine(p.client.cmds.Paplay, args)}
	res, err := p.client.runner.Run(ctx, p.client.cmds.Paplay, args...)
	switch {
	case err != nil:
		b.Err = err
	case res.ExitCode != 0:
		b.Err = fmt.Errorf("exit status %d: %s", res.ExitCode, res.Stderr)
	}
	return b
}

// ActivateMic records from the default source for the configured duration
// and throws the audio away.
func (p *Primer) ActivateMic(ctx context.Context) BestEffort {
	if p.micDuration <= 0 {
		return BestEffort{Skipped: true}
	}
	args := []string{"--raw", "/dev/null"}
	b := BestEffort{Command: commandLine(p.client.cmds.Parecord, args)}

	recCtx, cancel := context.WithTimeout(ctx, p.micDuration)
	defer cancel()

	res, err := p.client.runner.Run(recCtx, p.client.cmds.Parecord, args...)
	if errors.Is(recCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		// Stopped by our own timer: the recording ran its full course.
		return b
	}
	switch {
	case err != nil:
		b.Err = err
	case res.ExitCode != 0:
		b.Err = fmt.Errorf("exit status %d: %s", res.ExitCode, res.Stderr)
	}
	return b
}
