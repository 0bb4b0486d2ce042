package pactl

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/modoterra/fxswitch/pkg/core"
)

// Commands names the executables the client shells out to.
type Commands struct {
	Pactl    string
	Pacmd    string
	Paplay   string
	Parecord string
}

// DefaultCommands resolves every tool through PATH.
func DefaultCommands() Commands {
	return Commands{Pactl: "pactl", Pacmd: "pacmd", Paplay: "paplay", Parecord: "parecord"}
}

// Client queries and rewires the audio server through its CLI tools.
type Client struct {
	runner Runner
	cmds   Commands
	logger *slog.Logger
}

// NewClient creates a client. Empty command names fall back to DefaultCommands.
func NewClient(runner Runner, cmds Commands, logger *slog.Logger) *Client {
	def := DefaultCommands()
	if cmds.Pactl == "" {
		cmds.Pactl = def.Pactl
	}
	if cmds.Pacmd == "" {
		cmds.Pacmd = def.Pacmd
	}
	if cmds.Paplay == "" {
		cmds.Paplay = def.Paplay
	}
	if cmds.Parecord == "" {
		cmds.Parecord = def.Parecord
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{runner: runner, cmds: cmds, logger: logger}
}

// ListSinks runs "pactl list sinks" and parses the result.
func (c *Client) ListSinks(ctx context.Context) ([]core.Sink, error) {
	out, err := c.query(ctx, c.cmds.Pactl, "list", "sinks")
	if err != nil {
		return nil, err
	}
	sinks, err := ParseSinks(out)
	if err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}
	return sinks, nil
}

// ListSinkInputs runs "pacmd list-sink-inputs" and parses the result.
func (c *Client) ListSinkInputs(ctx context.Context) ([]core.SinkInput, error) {
	out, err := c.query(ctx, c.cmds.Pacmd, "list-sink-inputs")
	if err != nil {
		return nil, err
	}
	inputs, err := ParseSinkInputs(out)
	if err != nil {
		return nil, fmt.Errorf("list sink inputs: %w", err)
	}
	return inputs, nil
}

// MoveSinkInput runs "pacmd move-sink-input <stream> <sink>" and returns the
// raw result. pacmd reports failure on stdout, so interpreting the result is
// left to the caller.
func (c *Client) MoveSinkInput(ctx context.Context, stream, sink int) (Result, error) {
	return c.runner.Run(ctx, c.cmds.Pacmd, "move-sink-input", strconv.Itoa(stream), strconv.Itoa(sink))
}

func (c *Client) query(ctx context.Context, name string, args ...string) (string, error) {
	res, err := c.runner.Run(ctx, name, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s: exit status %d: %s", commandLine(name, args), res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	c.logger.Debug("command output", "command", commandLine(name, args), "bytes", len(res.Stdout))
	return res.Stdout, nil
}
