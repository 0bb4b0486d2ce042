package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/modoterra/fxswitch/pkg/config"
	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/selector"
	"github.com/modoterra/fxswitch/pkg/transport/uds"
)

var (
	sinksAll   bool
	sinksJSON  bool
	inputsJSON bool
	statusJSON bool
)

func init() {
	sinksCmd.Flags().BoolVar(&sinksAll, "all", false, "include sinks outside the allow-list")
	sinksCmd.Flags().BoolVar(&sinksJSON, "json", false, "output as JSON")
	inputsCmd.Flags().BoolVar(&inputsJSON, "json", false, "output as JSON")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(sinksCmd)
	rootCmd.AddCommand(inputsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Sinks ---

var sinksCmd = &cobra.Command{
	Use:   "sinks",
	Short: "List output sinks (allow-listed only unless --all)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		stack, err := directStack()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		sinks, err := stack.Client.ListSinks(ctx)
		if err != nil {
			return err
		}
		if !sinksAll {
			sinks = selector.ValidSinks(sinks, cfg.Outputs)
		}

		current := core.NoSink
		if inputs, err := stack.Client.ListSinkInputs(ctx); err == nil {
			if in, err := selector.FindManagedStreamInput(inputs, cfg.Streams.Output, core.RoleOutput); err == nil {
				current = in.Sink
			}
		}

		out := cmd.OutOrStdout()
		if sinksJSON {
			return encodeJSON(out, sinks)
		}
		if len(sinks) == 0 {
			fmt.Fprintln(out, "no sinks")
			return nil
		}
		rows := make([][]string, 0, len(sinks))
		for _, s := range sinks {
			mark := ""
			if s.Index == current {
				mark = "*"
			}
			rows = append(rows, []string{mark, strconv.Itoa(s.Index), string(s.State), s.Description})
		}
		writeRows(out, []string{"", "INDEX", "STATE", "DESCRIPTION"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft})
		return nil
	},
}

// --- Inputs ---

var inputsCmd = &cobra.Command{
	Use:   "inputs",
	Short: "List playback streams (sink inputs)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		stack, err := directStack()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		inputs, err := stack.Client.ListSinkInputs(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if inputsJSON {
			return encodeJSON(out, inputs)
		}
		if len(inputs) == 0 {
			fmt.Fprintln(out, "no sink inputs")
			return nil
		}
		rows := make([][]string, 0, len(inputs))
		for _, in := range inputs {
			rows = append(rows, []string{
				strconv.Itoa(in.Index),
				sinkLabel(in.Sink),
				in.AppName,
				in.MediaName,
				in.AppID,
				managedRole(cfg, in),
			})
		}
		writeRows(out, []string{"INDEX", "SINK", "APPLICATION", "MEDIA", "APP ID", "MANAGED"}, rows,
			[]columnAlignment{alignRight, alignRight})
		return nil
	},
}

func sinkLabel(idx int) string {
	if idx == core.NoSink {
		return "-"
	}
	return strconv.Itoa(idx)
}

func managedRole(cfg *config.Config, in core.SinkInput) string {
	switch {
	case cfg.Streams.Output.Matches(in):
		return string(core.RoleOutput)
	case !cfg.Streams.Input.IsZero() && cfg.Streams.Input.Matches(in):
		return string(core.RoleInput)
	default:
		return ""
	}
}

// --- Status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's routing, boot and service state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			return encodeJSON(out, st)
		}
		printStatus(out, st)
		return nil
	},
}

func printStatus(w io.Writer, st uds.StatusResponse) {
	if sink, ok := st.CurrentSink(); ok {
		fmt.Fprintf(w, "output:  %s (sink %d, %s)\n", sink.Description, sink.Index, sink.State)
	} else {
		fmt.Fprintln(w, "output:  none")
	}
	switch {
	case st.RouteError != "":
		fmt.Fprintf(w, "stream:  %s\n", st.RouteError)
	case st.Output != nil:
		fmt.Fprintf(w, "stream:  #%d %s (%s)\n", st.Output.Index, st.Output.AppName, st.Output.MediaName)
	}

	boot := "done"
	switch {
	case st.Boot.Running:
		boot = fmt.Sprintf("running (attempt %d)", st.Boot.Attempts)
	case !st.Boot.OutputConfigured || !st.Boot.InputConfigured:
		boot = "incomplete"
	}
	if st.Boot.LastError != "" {
		boot += ": " + st.Boot.LastError
	}
	fmt.Fprintf(w, "boot:    %s\n", boot)

	if st.EffectsProcess != "" {
		state := "not running"
		if len(st.EffectsPIDs) > 0 {
			pids := make([]string, len(st.EffectsPIDs))
			for i, p := range st.EffectsPIDs {
				pids[i] = strconv.Itoa(p)
			}
			state = "running (pid " + strings.Join(pids, ", ") + ")"
		}
		if st.EffectsState != "" {
			state += ", supervised: " + st.EffectsState
		}
		fmt.Fprintf(w, "effects: %s %s\n", st.EffectsProcess, state)
	}
	for _, u := range st.Units {
		fmt.Fprintf(w, "unit:    %s %s/%s\n", u.Name, u.ActiveState, u.SubState)
	}
}

// --- Watch ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print routing and boot events as the daemon reports them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		events := make(chan uds.Message, 16)
		client.OnEvent(func(m uds.Message) {
			select {
			case events <- m:
			default:
			}
		})

		ctx, cancel := signalContext()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-client.Done():
				return fmt.Errorf("daemon closed the connection")
			case m := <-events:
				printEvent(out, m)
			}
		}
	},
}

func printEvent(w io.Writer, m uds.Message) {
	ts := time.Now().Format("15:04:05")
	switch m.Method {
	case uds.EventRouteChanged:
		var ev uds.RouteEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			return
		}
		desc := "none"
		for _, s := range ev.Sinks {
			if s.Index == ev.Current {
				desc = s.Description
			}
		}
		fmt.Fprintf(w, "%s route  %s (%d valid sinks)\n", ts, desc, len(ev.Sinks))
	case uds.EventBootState:
		var st uds.BootStatus
		if err := json.Unmarshal(m.Data, &st); err != nil {
			return
		}
		fmt.Fprintf(w, "%s boot   output=%t input=%t attempts=%d\n", ts, st.OutputConfigured, st.InputConfigured, st.Attempts)
	}
}
