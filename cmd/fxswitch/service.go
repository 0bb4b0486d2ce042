package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/modoterra/fxswitch/pkg/daemon/service"
	"github.com/modoterra/fxswitch/pkg/systemd"
)

var _ service.Controller = (*systemd.Manager)(nil)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the fxswitchd systemd user service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start fxswitchd as a user service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		mgr, err := systemd.Dial(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()
		if err := service.Install(ctx, mgr, configPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "installed "+service.UnitName+" ✓")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the user service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		mgr, err := systemd.Dial(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()
		if err := service.Uninstall(ctx, mgr); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "removed "+service.UnitName)
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show socket and service state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var ctl service.Controller
		if mgr, err := systemd.Dial(ctx); err == nil {
			defer mgr.Close()
			ctl = mgr
		}
		fmt.Fprintln(cmd.OutOrStdout(), service.Status(ctx, ctl, resolveSocket(cfg)))
		return nil
	},
}

var serviceRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the user service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		mgr, err := systemd.Dial(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()
		if err := mgr.Restart(ctx, service.UnitName); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "restarted "+service.UnitName+" ✓")
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
	serviceCmd.AddCommand(serviceRestartCmd)
	rootCmd.AddCommand(serviceCmd)
}
