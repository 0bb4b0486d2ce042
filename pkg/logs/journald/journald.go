// Package journald tails the user journal for a unit.
package journald

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// Line is one journal message.
type Line struct {
	Time time.Time
	Text string
}

// Options selects what to read.
type Options struct {
	Unit   string
	Lines  int  // history lines to start with
	Follow bool // keep reading new entries
}

// Journal runs journalctl.
type Journal struct {
	// Command is the journalctl executable.
	Command string
	logger  *slog.Logger
}

// New creates a journal reader.
func New(logger *slog.Logger) *Journal {
	return &Journal{Command: "journalctl", logger: logger}
}

// Args builds the journalctl argument list.
func Args(opts Options) []string {
	args := []string{"--user", "-u", opts.Unit, "-o", "cat", "--no-pager"}
	if opts.Lines > 0 {
		args = append(args, "-n", strconv.Itoa(opts.Lines))
	}
	if opts.Follow {
		args = append(args, "-f")
	}
	return args
}

// Subscribe starts journalctl and streams its lines until it exits or ctx
// is cancelled. The channel is closed when reading stops.
func (j *Journal) Subscribe(ctx context.Context, opts Options) (<-chan Line, error) {
	cmd := exec.CommandContext(ctx, j.Command, Args(opts)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("journalctl pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("journalctl start: %w", err)
	}
	j.logger.Debug("tailing journal", "unit", opts.Unit, "follow", opts.Follow)

	ch := make(chan Line, 100)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			select {
			case ch <- Line{Time: time.Now(), Text: scanner.Text()}:
			case <-ctx.Done():
			}
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			j.logger.Warn("journalctl exited", "err", err)
		}
	}()
	return ch, nil
}
