package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/modoterra/fxswitch/pkg/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	stateRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stateIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	w := max(a.width-4, 20)
	body := titleStyle.Render(" Outputs ") + "\n" + a.renderSinks(w-4) + "\n" + a.renderInfo()
	pane := paneStyle.Width(w).Render(body)

	status := helpStyle.Render(a.statusMsg)
	if strings.HasPrefix(a.statusMsg, "error:") {
		status = errorStyle.Render(a.statusMsg)
	}
	return lipgloss.JoinVertical(lipgloss.Left, pane, status, a.help.View(a.keys))
}

func (a App) renderSinks(w int) string {
	if !a.loaded {
		return dimStyle.Render("waiting for daemon...")
	}
	if len(a.status.Sinks) == 0 {
		if a.status.RouteError != "" {
			return errorStyle.Render(a.status.RouteError)
		}
		return dimStyle.Render("no configured output is available")
	}

	var b strings.Builder
	for i, s := range a.status.Sinks {
		marker := "  "
		if s.Index == a.status.Current {
			marker = "▶ "
		}
		desc := truncate(s.Description, w-14)
		line := fmt.Sprintf("%s%-*s %s", marker, w-14, desc, stateLabel(s.State))
		if i == a.selectedIdx {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a App) renderInfo() string {
	st := a.status
	var b strings.Builder

	switch {
	case st.Output == nil:
		b.WriteString(dimStyle.Render("managed stream: not playing") + "\n")
	default:
		fmt.Fprintf(&b, "managed stream: #%d %s\n", st.Output.Index, st.Output.AppName)
	}

	boot := "pending"
	switch {
	case st.Boot.Running:
		boot = fmt.Sprintf("retrying (attempt %d)", st.Boot.Attempts)
	case st.Boot.OutputConfigured && st.Boot.InputConfigured:
		boot = "done"
	}
	fmt.Fprintf(&b, "boot: %s\n", boot)

	if st.EffectsProcess != "" {
		if len(st.EffectsPIDs) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", st.EffectsProcess, stateRunning.Render("running"))
		} else {
			fmt.Fprintf(&b, "%s: %s\n", st.EffectsProcess, errorStyle.Render("not running"))
		}
	}
	return b.String()
}

func stateLabel(s core.State) string {
	switch s {
	case core.StateRunning:
		return stateRunning.Render(string(s))
	default:
		return stateIdle.Render(string(s))
	}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
