// Package pactl talks to the PulseAudio command-line tools: it runs
// "pactl list sinks", "pacmd list-sink-inputs" and "pacmd move-sink-input",
// and parses their text output into core records.
package pactl
