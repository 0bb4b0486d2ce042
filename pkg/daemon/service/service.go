// Package service manages the fxswitchd systemd user service unit.
package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// UnitName is the user unit fxswitchd runs as.
const UnitName = "fxswitchd.service"

// Controller is the subset of the systemd user manager the service
// commands drive. *systemd.Manager satisfies it.
type Controller interface {
	Reload(ctx context.Context) error
	Enable(ctx context.Context, path string) error
	Disable(ctx context.Context, name string) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	ActiveState(ctx context.Context, name string) (string, error)
}

// UnitContents returns the systemd unit file contents for the given binary
// path. configPath is passed through when set.
func UnitContents(binaryPath, configPath string) string {
	exec := binaryPath
	if configPath != "" {
		exec += " --config " + configPath
	}
	return fmt.Sprintf(`[Unit]
Description=fxswitch daemon - audio effects output toggler
Documentation=https://github.com/modoterra/fxswitch
After=pulseaudio.service
Wants=pulseaudio.service

[Service]
Type=notify
ExecStart=%s
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`, exec)
}

// UnitPath returns the path to the systemd user unit file.
func UnitPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	return filepath.Join(configDir, "systemd", "user", UnitName), nil
}

// Install writes the unit file, reloads systemd, and enables+starts the service.
func Install(ctx context.Context, ctl Controller, configPath string) error {
	binaryPath, err := exec.LookPath("fxswitchd")
	if err != nil {
		return fmt.Errorf("fxswitchd not found in PATH: %w", err)
	}
	binaryPath, err = filepath.Abs(binaryPath)
	if err != nil {
		return fmt.Errorf("cannot resolve fxswitchd path: %w", err)
	}

	unitPath, err := UnitPath()
	if err != nil {
		return err
	}
	return InstallUnit(ctx, ctl, unitPath, binaryPath, configPath)
}

// InstallUnit writes the unit to unitPath, then reloads, enables and starts it.
func InstallUnit(ctx context.Context, ctl Controller, unitPath, binaryPath, configPath string) error {
	if err := WriteUnit(unitPath, binaryPath, configPath); err != nil {
		return err
	}
	if err := ctl.Reload(ctx); err != nil {
		return err
	}
	if err := ctl.Enable(ctx, unitPath); err != nil {
		return err
	}
	return ctl.Start(ctx, UnitName)
}

// WriteUnit writes the unit file to unitPath.
func WriteUnit(unitPath, binaryPath, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	contents := UnitContents(binaryPath, configPath)
	if err := os.WriteFile(unitPath, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("cannot write unit file: %w", err)
	}
	return nil
}

// Uninstall stops+disables the service, removes the unit file, and reloads systemd.
func Uninstall(ctx context.Context, ctl Controller) error {
	unitPath, err := UnitPath()
	if err != nil {
		return err
	}
	return UninstallUnit(ctx, ctl, unitPath)
}

// UninstallUnit stops and disables the service and removes unitPath.
func UninstallUnit(ctx context.Context, ctl Controller, unitPath string) error {
	// Not running or not enabled is fine here.
	_ = ctl.Stop(ctx, UnitName)
	_ = ctl.Disable(ctx, UnitName)

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove unit file: %w", err)
	}
	return ctl.Reload(ctx)
}

// Status returns a human-readable status string. ctl may be nil when the
// user bus is unreachable.
func Status(ctx context.Context, ctl Controller, socketPath string) string {
	var lines []string

	if _, err := os.Stat(socketPath); err == nil {
		lines = append(lines, "socket: active ("+socketPath+")")
	} else {
		lines = append(lines, "socket: inactive ("+socketPath+")")
	}

	unitPath, err := UnitPath()
	if err == nil {
		if _, statErr := os.Stat(unitPath); statErr == nil {
			state := "unknown"
			if ctl != nil {
				if s, err := ctl.ActiveState(ctx, UnitName); err == nil {
					state = s
				}
			}
			lines = append(lines, "systemd user service: "+state)
		} else {
			lines = append(lines, "systemd user service: not installed")
		}
	}

	return strings.Join(lines, "\n")
}
