// Package model is the Bubble Tea sink picker behind a bare `fxswitch`.
package model

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/fxswitch/pkg/core"
	"github.com/modoterra/fxswitch/pkg/transport/uds"
)

// Backend is the daemon API the picker drives. *uds.Client implements it.
type Backend interface {
	Status(ctx context.Context) (uds.StatusResponse, error)
	Toggle(ctx context.Context) (uds.SinkResponse, error)
	SetOutput(ctx context.Context, description string) (uds.SinkResponse, error)
	Boot(ctx context.Context) (uds.BootResponse, error)
}

const requestTimeout = 5 * time.Second

// App is the root Bubble Tea model.
type App struct {
	// Connection
	backend    Backend
	socketPath string
	events     chan uds.Message

	// State
	status      uds.StatusResponse
	loaded      bool
	selectedIdx int

	// UI
	keys      KeyMap
	help      help.Model
	width     int
	height    int
	statusMsg string
	busy      bool
}

// New creates a picker that dials the daemon at socketPath on start.
func New(socketPath string) App {
	return App{
		socketPath: socketPath,
		events:     make(chan uds.Message, 8),
		keys:       DefaultKeyMap(),
		help:       help.New(),
	}
}

// NewWithBackend creates a picker over an established backend.
func NewWithBackend(b Backend) App {
	a := New("")
	a.backend = b
	return a
}

// Init connects to the daemon.
func (a App) Init() tea.Cmd {
	if a.backend != nil {
		return tea.Batch(fetchStatusCmd(a.backend), tickCmd(), tea.SetWindowTitle("fxswitch"))
	}
	return tea.Batch(connectCmd(a.socketPath, a.events), tea.SetWindowTitle("fxswitch"))
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

// connectedMsg indicates successful daemon connection.
type connectedMsg struct{ client *uds.Client }

// statusMsg carries a fresh daemon status.
type statusMsg struct{ status uds.StatusResponse }

// switchedMsg reports where a switch landed.
type switchedMsg struct{ sink core.Sink }

// bootMsg reports a boot request result.
type bootMsg struct{ resp uds.BootResponse }

// eventMsg carries a daemon push event.
type eventMsg struct{ msg uds.Message }

// errorMsg carries an error to display.
type errorMsg struct{ err error }

func connectCmd(socketPath string, events chan uds.Message) tea.Cmd {
	return func() tea.Msg {
		client, err := uds.Dial(socketPath)
		if err != nil {
			return errorMsg{err}
		}
		client.OnEvent(func(m uds.Message) {
			select {
			case events <- m:
			default:
			}
		})
		return connectedMsg{client}
	}
}

func waitEventCmd(events <-chan uds.Message) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{<-events}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStatusCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		st, err := b.Status(ctx)
		if err != nil {
			return errorMsg{err}
		}
		return statusMsg{st}
	}
}

func setOutputCmd(b Backend, description string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := b.SetOutput(ctx, description)
		if err != nil {
			return errorMsg{err}
		}
		return switchedMsg{resp.Sink}
	}
}

func toggleCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := b.Toggle(ctx)
		if err != nil {
			return errorMsg{err}
		}
		return switchedMsg{resp.Sink}
	}
}

func bootCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := b.Boot(ctx)
		if err != nil {
			return errorMsg{err}
		}
		return bootMsg{resp}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case connectedMsg:
		a.backend = msg.client
		a.statusMsg = "connected"
		return a, tea.Batch(fetchStatusCmd(a.backend), tickCmd(), waitEventCmd(a.events))

	case tickMsg:
		if a.backend == nil {
			return a, nil
		}
		return a, tea.Batch(tickCmd(), fetchStatusCmd(a.backend))

	case eventMsg:
		return a, tea.Batch(fetchStatusCmd(a.backend), waitEventCmd(a.events))

	case statusMsg:
		a.status = msg.status
		if !a.loaded {
			a.selectedIdx = a.currentIdx()
			a.loaded = true
		}
		if a.selectedIdx >= len(a.status.Sinks) {
			a.selectedIdx = max(0, len(a.status.Sinks)-1)
		}
		return a, nil

	case switchedMsg:
		a.busy = false
		a.statusMsg = "output → " + msg.sink.Description
		return a, fetchStatusCmd(a.backend)

	case bootMsg:
		a.busy = false
		if msg.resp.Started {
			a.statusMsg = "boot sequence started"
		} else {
			a.statusMsg = "boot sequence already running"
		}
		return a, fetchStatusCmd(a.backend)

	case errorMsg:
		a.busy = false
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	case key.Matches(msg, a.keys.Up):
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, nil
	case key.Matches(msg, a.keys.Down):
		if a.selectedIdx < len(a.status.Sinks)-1 {
			a.selectedIdx++
		}
		return a, nil
	}

	if a.backend == nil {
		a.statusMsg = "not connected"
		return a, nil
	}
	if a.busy {
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.Select):
		if a.selectedIdx >= len(a.status.Sinks) {
			return a, nil
		}
		target := a.status.Sinks[a.selectedIdx]
		a.busy = true
		a.statusMsg = "switching to " + target.Description + "..."
		return a, setOutputCmd(a.backend, target.Description)
	case key.Matches(msg, a.keys.Toggle):
		a.busy = true
		a.statusMsg = "toggling..."
		return a, toggleCmd(a.backend)
	case key.Matches(msg, a.keys.Boot):
		a.busy = true
		return a, bootCmd(a.backend)
	case key.Matches(msg, a.keys.Refresh):
		return a, fetchStatusCmd(a.backend)
	}
	return a, nil
}

func (a App) currentIdx() int {
	for i, s := range a.status.Sinks {
		if s.Index == a.status.Current {
			return i
		}
	}
	return 0
}
