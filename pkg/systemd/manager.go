package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Manager controls user units through one user-bus connection.
type Manager struct {
	conn *dbus.Conn
}

// Dial connects to the user instance of systemd.
func Dial(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dbus connect: %w", err)
	}
	return &Manager{conn: conn}, nil
}

// Close releases the bus connection.
func (m *Manager) Close() {
	m.conn.Close()
}

// Reload makes systemd re-read unit files.
func (m *Manager) Reload(ctx context.Context) error {
	if err := m.conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("systemd reload: %w", err)
	}
	return nil
}

// Enable links the unit file at path into its install targets.
func (m *Manager) Enable(ctx context.Context, path string) error {
	if _, _, err := m.conn.EnableUnitFilesContext(ctx, []string{path}, false, true); err != nil {
		return fmt.Errorf("systemd enable %s: %w", path, err)
	}
	return nil
}

// Disable removes the unit's install links.
func (m *Manager) Disable(ctx context.Context, name string) error {
	if _, err := m.conn.DisableUnitFilesContext(ctx, []string{name}, false); err != nil {
		return fmt.Errorf("systemd disable %s: %w", name, err)
	}
	return nil
}

// Start starts a unit and waits for the job to finish.
func (m *Manager) Start(ctx context.Context, name string) error {
	return m.job(ctx, "start", name, m.conn.StartUnitContext)
}

// Stop stops a unit and waits for the job to finish.
func (m *Manager) Stop(ctx context.Context, name string) error {
	return m.job(ctx, "stop", name, m.conn.StopUnitContext)
}

// Restart restarts a unit and waits for the job to finish.
func (m *Manager) Restart(ctx context.Context, name string) error {
	return m.job(ctx, "restart", name, m.conn.RestartUnitContext)
}

// ActiveState returns the unit's ActiveState property, e.g. "active".
func (m *Manager) ActiveState(ctx context.Context, name string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, name, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("systemd %s state: %w", name, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("systemd %s state: unexpected value %v", name, prop.Value)
	}
	return state, nil
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

func (m *Manager) job(ctx context.Context, verb, name string, run jobFunc) error {
	ch := make(chan string, 1)
	if _, err := run(ctx, name, "replace", ch); err != nil {
		return fmt.Errorf("systemd %s %s: %w", verb, name, err)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("systemd %s %s: job result %q", verb, name, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
