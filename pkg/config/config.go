// Package config loads and validates the fxswitch.yaml configuration.
package config

import (
	"slices"
	"time"

	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/hotkey"
)

// Config represents a config.yaml file.
type Config struct {
	Version  int      `yaml:"version"  json:"version"`
	Outputs  []string `yaml:"outputs"  json:"outputs"`
	Boot     Boot     `yaml:"boot"     json:"boot"`
	Streams  Streams  `yaml:"streams"  json:"streams"`
	Hotkey   Hotkey   `yaml:"hotkey"   json:"hotkey"`
	Prime    Prime    `yaml:"prime"    json:"prime"`
	Commands Commands `yaml:"commands" json:"commands"`
	Effects  Effects  `yaml:"effects"  json:"effects"`
	Daemon   Daemon   `yaml:"daemon"   json:"daemon"`
	Metrics  Metrics  `yaml:"metrics"  json:"metrics"`
	Logging  Logging  `yaml:"logging"  json:"logging"`

	// FilePath is where the config was loaded from; empty for defaults.
	FilePath string `yaml:"-" json:"-"`
}

// Boot configures the startup routing sequence.
type Boot struct {
	Output  string        `yaml:"output"          json:"output"`          // description of the boot output
	Input   string        `yaml:"input,omitempty" json:"input,omitempty"` // sink description for the mic stream
	Delay   time.Duration `yaml:"delay"           json:"delay"`
	Backoff Backoff       `yaml:"backoff"         json:"backoff"`
}

// Backoff configures the retry delay between boot passes.
type Backoff struct {
	Strategy string        `yaml:"strategy"         json:"strategy"` // linear|multiplicative
	Initial  time.Duration `yaml:"initial"          json:"initial"`
	Step     time.Duration `yaml:"step,omitempty"   json:"step,omitempty"`   // linear
	Factor   float64       `yaml:"factor,omitempty" json:"factor,omitempty"` // multiplicative
	Max      time.Duration `yaml:"max"              json:"max"`
}

// Streams identifies the managed sink inputs.
type Streams struct {
	Output core.StreamIdentity `yaml:"output"          json:"output"`
	Input  core.StreamIdentity `yaml:"input,omitempty" json:"input,omitempty"`
}

// Hotkey configures the toggle key combination.
type Hotkey struct {
	Keys  []string `yaml:"keys"            json:"keys"` // evdev names or codes
	Debug bool     `yaml:"debug,omitempty" json:"debug,omitempty"`
}

// Prime configures the best-effort device priming calls.
type Prime struct {
	Announcement string        `yaml:"announcement,omitempty" json:"announcement,omitempty"` // sound file for paplay
	Mic          time.Duration `yaml:"mic,omitempty"          json:"mic,omitempty"`          // parecord duration
}

// Commands overrides executable paths.
type Commands struct {
	Pactl    string `yaml:"pactl"    json:"pactl"`
	Pacmd    string `yaml:"pacmd"    json:"pacmd"`
	Paplay   string `yaml:"paplay"   json:"paplay"`
	Parecord string `yaml:"parecord" json:"parecord"`
}

// Effects names the audio-effects processor and, optionally, how
// fxswitchd launches it.
type Effects struct {
	Process string `yaml:"process"           json:"process"`
	Launch  string `yaml:"launch,omitempty"  json:"launch,omitempty"`  // command line; empty means started elsewhere
	Restart string `yaml:"restart,omitempty" json:"restart,omitempty"` // always|on-failure|never
}

// Daemon configures fxswitchd.
type Daemon struct {
	Socket       string        `yaml:"socket,omitempty" json:"socket,omitempty"`
	Lock         string        `yaml:"lock,omitempty"   json:"lock,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval"    json:"poll_interval"`
	Hotplug      bool          `yaml:"hotplug"          json:"hotplug"`
	Units        []string      `yaml:"units,omitempty"  json:"units,omitempty"` // user units shown by status
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// Logging configures the daemon logger.
type Logging struct {
	Level  string `yaml:"level"  json:"level"`
	Format string `yaml:"format" json:"format"` // text|json
}

// Output descriptions shipped as defaults.
const (
	AnalogOutput  = "Sound Blaster Play! Analog Stereo"
	DigitalOutput = "Family 17h (Models 00h-0fh) HD Audio Controller Digital Stereo (IEC958)"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Outputs: []string{AnalogOutput, DigitalOutput},
		Boot: Boot{
			Output: DigitalOutput,
			Delay:  time.Second,
			Backoff: Backoff{
				Strategy: "linear",
				Initial:  10 * time.Second,
				Step:     time.Second,
				Max:      15 * time.Second,
			},
		},
		Streams: Streams{
			Output: core.StreamIdentity{
				AppName:   "PulseEffects",
				MediaName: "Playback Stream",
				AppID:     "com.github.wwmm.pulseeffects",
			},
		},
		Hotkey: Hotkey{Keys: slices.Clone(hotkey.DefaultKeys)},
		Commands: Commands{
			Pactl:    "pactl",
			Pacmd:    "pacmd",
			Paplay:   "paplay",
			Parecord: "parecord",
		},
		Effects: Effects{Process: "pulseeffects"},
		Daemon: Daemon{
			PollInterval: 2 * time.Second,
			Hotplug:      true,
			Units:        []string{"pulseaudio.service"},
		},
		Logging: Logging{Level: "info", Format: "text"},
	}
}
