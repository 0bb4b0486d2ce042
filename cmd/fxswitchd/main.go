package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/modoterra/fxswitch/internal/buildinfo"
	"github.com/modoterra/fxswitch/internal/wire"
	"github.com/modoterra/fxswitch/pkg/config"
	"github.com/modoterra/fxswitch/pkg/daemon"
	"github.com/modoterra/fxswitch/pkg/hotkey"
	"github.com/modoterra/fxswitch/pkg/logging"
	"github.com/modoterra/fxswitch/pkg/metrics"
	"github.com/modoterra/fxswitch/pkg/procfs"
	"github.com/modoterra/fxswitch/pkg/systemd"
)

var errAlreadyRunning = errors.New("another fxswitchd is already running")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:           "fxswitchd",
	Short:         "fxswitch daemon: hotkey, boot routing and socket API",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := run(ctx, configPath); err != nil {
			fmt.Fprintln(os.Stderr, "fxswitchd:", err)
			return err
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fxswitchd %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (default $XDG_CONFIG_HOME/fxswitch/config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

func run(ctx context.Context, configPath string) error {
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return fmt.Errorf("%s: %w", configPath, errors.Join(errs...))
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: os.Stderr,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	lockPath := cfg.LockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("lock dir: %w", err)
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", errAlreadyRunning, lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release daemon lock", "err", err)
		}
	}()

	stack, err := wire.Build(cfg, nil, logger)
	if err != nil {
		return err
	}

	combo, err := hotkey.ParseCombo(cfg.Hotkey.Keys)
	if err != nil {
		return fmt.Errorf("hotkey: %w", err)
	}
	listener := hotkey.NewListener(combo, cfg.Hotkey.Debug, logger)
	if err := listener.Open(); err != nil {
		return fmt.Errorf("register hotkey %s: %w", combo, err)
	}

	var sup *daemon.Supervisor
	if cfg.Effects.Launch != "" {
		sup = daemon.NewSupervisor(cfg.Effects.Launch, daemon.RestartPolicy(cfg.Effects.Restart), logger)
	}

	d := daemon.New(daemon.Options{
		SocketPath:     cfg.SocketPath(),
		Router:         stack.Router,
		Sequencer:      stack.Sequencer,
		Hotkey:         listener,
		PollInterval:   cfg.Daemon.PollInterval,
		Hotplug:        cfg.Daemon.Hotplug,
		EffectsProcess: cfg.Effects.Process,
		Effects:        procfs.New(""),
		Supervisor:     sup,
		Units:          systemd.New(cfg.Daemon.Units, logger),
		Metrics:        metrics.New(),
		MetricsListen:  cfg.Metrics.Listen,
		Version:        buildinfo.Version,
	}, logger)

	logger.Info("starting fxswitchd",
		"version", buildinfo.Version,
		"config", configPath,
		"hotkey", combo.String(),
	)
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	logger.Info("shutting down")
	return nil
}
