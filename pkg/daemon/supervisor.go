package daemon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/modoterra/fxswitch/pkg/boot"
)

// RestartPolicy decides whether the supervised effects processor is
// restarted after it exits.
type RestartPolicy string

const (
	RestartAlways    RestartPolicy = "always"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartNever     RestartPolicy = "never"
)

// Supervised process states.
const (
	ProcStopped    = "stopped"
	ProcRunning    = "running"
	ProcRestarting = "restarting"
	ProcFailed     = "failed"
)

const stopGrace = 10 * time.Second

// Supervisor launches the effects processor and keeps it running. Every
// fresh start creates a new playback stream on the default sink, so the
// owner re-runs the boot sequence from OnStart.
type Supervisor struct {
	command string
	restart RestartPolicy
	backoff boot.Backoff
	sleep   boot.SleepFunc
	logger  *slog.Logger

	// OnStart is called after each successful spawn.
	OnStart func(ctx context.Context)

	mu        sync.Mutex
	status    string
	pid       int
	startedAt time.Time
	failures  int
}

// NewSupervisor creates a supervisor for command. Restarts back off
// 1s, 2s, 4s... up to 30s.
func NewSupervisor(command string, restart RestartPolicy, logger *slog.Logger) *Supervisor {
	if restart == "" {
		restart = RestartOnFailure
	}
	return &Supervisor{
		command: command,
		restart: restart,
		backoff: boot.Multiplicative{Start: time.Second, Factor: 2, Max: 30 * time.Second},
		sleep:   boot.Sleep,
		logger:  logger.With("component", "supervisor"),
		status:  ProcStopped,
	}
}

// Status returns the current state, pid and start time.
func (s *Supervisor) Status() (string, int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.pid, s.startedAt
}

// Run spawns the command and restarts it per policy until ctx is done,
// then terminates the process group.
func (s *Supervisor) Run(ctx context.Context) error {
	parts := strings.Fields(s.command)
	if len(parts) == 0 {
		return fmt.Errorf("empty command")
	}

	var delay time.Duration
	for {
		exitCode, err := s.runOnce(ctx, parts)
		if ctx.Err() != nil {
			s.setStopped(ProcStopped)
			return nil
		}
		if exitCode == 0 {
			s.setStopped(ProcStopped)
		} else {
			s.setStopped(ProcFailed)
		}
		s.logger.Info("process exited", "command", parts[0], "exit_code", exitCode, "err", err)

		if !s.shouldRestart(exitCode) {
			return nil
		}

		if delay == 0 {
			delay = s.backoff.Initial()
		} else {
			delay = s.backoff.Next(delay)
		}
		s.mu.Lock()
		s.status = ProcRestarting
		s.failures++
		attempt := s.failures
		s.mu.Unlock()
		s.logger.Info("restarting process", "command", parts[0], "delay", delay, "attempt", attempt)

		if err := s.sleep(ctx, delay); err != nil {
			s.setStopped(ProcStopped)
			return nil
		}
	}
}

func (s *Supervisor) shouldRestart(exitCode int) bool {
	switch s.restart {
	case RestartAlways:
		return true
	case RestartOnFailure:
		return exitCode != 0
	default:
		return false
	}
}

// runOnce starts the command and waits for it. A start failure is
// reported with exit code -1.
func (s *Supervisor) runOnce(ctx context.Context, parts []string) (int, error) {
	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %q: %w", s.command, err)
	}

	pid := cmd.Process.Pid
	s.mu.Lock()
	s.status = ProcRunning
	s.pid = pid
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.logger.Info("process started", "pid", pid, "command", s.command)

	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() { defer pipes.Done(); s.scanLines(stdout, "stdout") }()
	go func() { defer pipes.Done(); s.scanLines(stderr, "stderr") }()

	if s.OnStart != nil {
		s.OnStart(ctx)
	}

	done := make(chan error, 1)
	go func() {
		pipes.Wait()
		done <- cmd.Wait()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = unix.Kill(-pid, unix.SIGTERM)
		select {
		case err = <-done:
		case <-time.After(stopGrace):
			_ = unix.Kill(-pid, unix.SIGKILL)
			err = <-done
		}
	}

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	return exitCode, err
}

func (s *Supervisor) scanLines(r io.Reader, stream string) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.logger.Debug("process output", "stream", stream, "line", sc.Text())
	}
}

func (s *Supervisor) setStopped(status string) {
	s.mu.Lock()
	s.status = status
	s.pid = 0
	s.mu.Unlock()
}
