package config

import (
	"fmt"
	"slices"

	"github.com/modoterra/fxswitch/pkg/hotkey"
)

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	if len(c.Outputs) == 0 {
		errs = append(errs, fmt.Errorf("config must list at least one output"))
	}
	for i, out := range c.Outputs {
		if out == "" {
			errs = append(errs, fmt.Errorf("outputs[%d]: description is empty", i))
		}
		if slices.Index(c.Outputs, out) != i {
			errs = append(errs, fmt.Errorf("outputs[%d]: duplicate output %q", i, out))
		}
	}

	// Boot
	switch {
	case c.Boot.Output == "":
		errs = append(errs, fmt.Errorf("boot.output is required"))
	case !slices.Contains(c.Outputs, c.Boot.Output):
		errs = append(errs, fmt.Errorf("boot.output %q is not a listed output", c.Boot.Output))
	}
	if c.Boot.Delay < 0 {
		errs = append(errs, fmt.Errorf("boot.delay must not be negative"))
	}
	errs = append(errs, validateBackoff(c.Boot.Backoff)...)

	// Streams
	out := c.Streams.Output
	if out.AppName == "" || out.MediaName == "" || out.AppID == "" {
		errs = append(errs, fmt.Errorf("streams.output: app_name, media_name and app_id are required"))
	}
	in := c.Streams.Input
	if !in.IsZero() {
		if in.AppName == "" || in.MediaName == "" || in.AppID == "" {
			errs = append(errs, fmt.Errorf("streams.input: app_name, media_name and app_id are required together"))
		}
		if c.Boot.Input == "" {
			errs = append(errs, fmt.Errorf("streams.input is set but boot.input is empty"))
		}
	} else if c.Boot.Input != "" {
		errs = append(errs, fmt.Errorf("boot.input is set but streams.input is empty"))
	}

	// Hotkey
	if _, err := hotkey.ParseCombo(c.Hotkey.Keys); err != nil {
		errs = append(errs, fmt.Errorf("hotkey.keys: %w", err))
	}

	if c.Prime.Mic < 0 {
		errs = append(errs, fmt.Errorf("prime.mic must not be negative"))
	}
	switch c.Effects.Restart {
	case "", "always", "on-failure", "never":
	default:
		errs = append(errs, fmt.Errorf("effects.restart must be always, on-failure or never; got %q", c.Effects.Restart))
	}
	if c.Daemon.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("daemon.poll_interval must not be negative"))
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format))
	}

	return errs
}

func validateBackoff(b Backoff) []error {
	var errs []error
	if b.Initial <= 0 {
		errs = append(errs, fmt.Errorf("boot.backoff.initial must be positive"))
	}
	if b.Max < b.Initial {
		errs = append(errs, fmt.Errorf("boot.backoff.max must be at least initial"))
	}
	switch b.Strategy {
	case "linear", "":
		if b.Step <= 0 {
			errs = append(errs, fmt.Errorf("boot.backoff.step must be positive for linear backoff"))
		}
	case "multiplicative":
		if b.Factor <= 1 {
			errs = append(errs, fmt.Errorf("boot.backoff.factor must be greater than 1 for multiplicative backoff"))
		}
	default:
		errs = append(errs, fmt.Errorf("boot.backoff.strategy must be linear or multiplicative; got %q", b.Strategy))
	}
	return errs
}
