// Package wire builds the routing stack from a Config. Both binaries use
// it: fxswitchd for its long-lived router and `fxswitch --direct` for
// one-shot operations without the daemon.
package wire

import (
	"fmt"
	"log/slog"

	"github.com/modoterra/fxswitch/pkg/boot"
	"github.com/modoterra/fxswitch/pkg/config"
	"github.com/modoterra/fxswitch/pkg/pactl"
	"github.com/modoterra/fxswitch/pkg/switcher"
)

// Stack is the routing stack for one process.
type Stack struct {
	Client    *pactl.Client
	Router    *switcher.Router
	Sequencer *boot.Sequencer
}

// Build creates the stack. A nil runner executes the real tools.
func Build(cfg *config.Config, runner pactl.Runner, logger *slog.Logger) (*Stack, error) {
	client := pactl.NewClient(runner, Commands(cfg), logger)
	router := switcher.NewRouter(client, Targets(cfg), logger)

	b := cfg.Boot.Backoff
	backoff, err := boot.NewBackoff(b.Strategy, b.Initial, b.Step, b.Factor, b.Max)
	if err != nil {
		return nil, fmt.Errorf("boot backoff: %w", err)
	}
	primer := pactl.NewPrimer(client, cfg.Prime.Announcement, cfg.Prime.Mic)
	seq := boot.New(router, primer, boot.Options{
		Output:  cfg.Boot.Output,
		Input:   cfg.Boot.Input,
		Delay:   cfg.Boot.Delay,
		Backoff: backoff,
	}, logger)

	return &Stack{Client: client, Router: router, Sequencer: seq}, nil
}

// Commands maps the config's executable overrides.
func Commands(cfg *config.Config) pactl.Commands {
	return pactl.Commands{
		Pactl:    cfg.Commands.Pactl,
		Pacmd:    cfg.Commands.Pacmd,
		Paplay:   cfg.Commands.Paplay,
		Parecord: cfg.Commands.Parecord,
	}
}

// Targets maps the allow-list and stream identities.
func Targets(cfg *config.Config) switcher.Targets {
	return switcher.Targets{
		Outputs: cfg.Outputs,
		Output:  cfg.Streams.Output,
		Input:   cfg.Streams.Input,
	}
}
