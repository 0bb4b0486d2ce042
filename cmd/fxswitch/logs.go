package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modoterra/fxswitch/pkg/daemon/service"
	"github.com/modoterra/fxswitch/pkg/logs/journald"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show fxswitchd logs from the user journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		j := journald.New(cliLogger(cfg, ""))
		lines, err := j.Subscribe(ctx, journald.Options{
			Unit:   service.UnitName,
			Lines:  logsLines,
			Follow: logsFollow,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for line := range lines {
			fmt.Fprintln(out, line.Text)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep printing new entries")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of past entries to show")
	rootCmd.AddCommand(logsCmd)
}
