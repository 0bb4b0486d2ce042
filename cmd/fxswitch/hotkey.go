package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modoterra/fxswitch/pkg/hotkey"
)

var hotkeyCmd = &cobra.Command{
	Use:   "hotkey",
	Short: "Inspect the toggle hotkey",
}

var hotkeyDebugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Log every key press on the hotkey keyboards without toggling",
	Long:  "Stop fxswitchd first if it holds the keyboards. Press ctrl+c to exit.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		combo, err := hotkey.ParseCombo(cfg.Hotkey.Keys)
		if err != nil {
			return fmt.Errorf("hotkey: %w", err)
		}
		l := hotkey.NewListener(combo, true, cliLogger(cfg, "info"))
		if err := l.Open(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "listening for %s, press keys (ctrl+c to stop)\n", combo)

		ctx, cancel := signalContext()
		defer cancel()
		return l.Run(ctx, func() {})
	},
}

func init() {
	hotkeyCmd.AddCommand(hotkeyDebugCmd)
	rootCmd.AddCommand(hotkeyCmd)
}
