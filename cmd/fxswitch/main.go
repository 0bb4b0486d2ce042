package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modoterra/fxswitch/internal/buildinfo"
	"github.com/modoterra/fxswitch/internal/wire"
	"github.com/modoterra/fxswitch/pkg/config"
	"github.com/modoterra/fxswitch/pkg/logging"
	"github.com/modoterra/fxswitch/pkg/pactl"
	"github.com/modoterra/fxswitch/pkg/transport/uds"
	tuimodel "github.com/modoterra/fxswitch/pkg/tui/model"
)

var (
	socketPath string
	configPath string

	// runner executes pactl/pacmd for --direct commands; nil runs the real tools.
	runner pactl.Runner
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "fxswitch",
	Short:        "Toggle the audio-effects output between sound cards",
	Long:         "fxswitch moves the effects processor's playback stream between allow-listed sinks. With no arguments it opens an interactive picker backed by fxswitchd.",
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket path (default from config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

// --- Root: TUI ---

func runTUI(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sock := resolveSocket(cfg)
	ensureDaemon(sock)
	app := tuimodel.New(sock)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func ensureDaemon(sock string) {
	if _, err := os.Stat(sock); err == nil {
		return
	}
	args := []string{}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command("fxswitchd", args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not start daemon:", err)
		return
	}
	for i := 0; i < 30; i++ {
		if _, err := os.Stat(sock); err == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "warning: could not start daemon, continuing anyway")
}

// --- Shared helpers ---

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func resolveSocket(cfg *config.Config) string {
	if socketPath != "" {
		return socketPath
	}
	return cfg.SocketPath()
}

func dialDaemon() (*uds.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	sock := resolveSocket(cfg)
	client, err := uds.Dial(sock)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", sock, err)
	}
	return client, nil
}

// cliLogger logs warnings and above to stderr, or everything at the
// configured level when verbose output is wanted.
func cliLogger(cfg *config.Config, level string) *slog.Logger {
	if level == "" {
		level = "warn"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: cfg.Logging.Format, Writer: os.Stderr})
	if err != nil {
		return logging.Discard()
	}
	return logger
}

// directStack builds an in-process routing stack.
func directStack() (*wire.Stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", cfg.FilePath, errors.Join(errs...))
	}
	return wire.Build(cfg, runner, cliLogger(cfg, ""))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if daemon is running",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		pong, err := client.Ping(ctx)
		if err != nil {
			return err
		}
		if pong.Pong {
			fmt.Fprintf(cmd.OutOrStdout(), "pong ✓ (fxswitchd %s)\n", pong.Version)
		}
		return nil
	},
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fxswitch %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

// --- Daemon ---

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start daemon in foreground (for debugging)",
	Long:  "Normally the TUI auto-spawns the daemon or systemd runs it. Use this to run it manually.",
	RunE: func(_ *cobra.Command, _ []string) error {
		args := []string{}
		if configPath != "" {
			args = append(args, "--config", configPath)
		}
		cmd := exec.Command("fxswitchd", args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	},
}
