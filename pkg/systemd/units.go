// Package systemd reads and controls user units over the session D-Bus.
package systemd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Unit is a user unit's state as reported by systemd.
type Unit struct {
	Name        string `json:"name"`
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
	LoadState   string `json:"load_state"`
	MainPID     int    `json:"main_pid,omitempty"`
}

// Status folds systemd's states into one word.
func (u Unit) Status() string {
	switch {
	case u.LoadState == "not-found":
		return "missing"
	case u.ActiveState == "active":
		return "running"
	case u.ActiveState == "activating", u.ActiveState == "reloading":
		return "starting"
	case u.ActiveState == "inactive", u.ActiveState == "deactivating":
		return "stopped"
	case u.ActiveState == "failed":
		return "failed"
	default:
		return "unknown"
	}
}

// Units queries a fixed set of units on the user bus.
type Units struct {
	names  []string
	logger *slog.Logger
}

// New creates a querier for the given unit names.
func New(names []string, logger *slog.Logger) *Units {
	return &Units{names: names, logger: logger}
}

// List returns the state of every configured unit.
func (u *Units) List(ctx context.Context) ([]Unit, error) {
	if len(u.names) == 0 {
		return nil, nil
	}
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	statuses, err := conn.ListUnitsByNamesContext(ctx, u.names)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}

	units := make([]Unit, 0, len(statuses))
	for _, s := range statuses {
		unit := Unit{
			Name:        s.Name,
			ActiveState: s.ActiveState,
			SubState:    s.SubState,
			LoadState:   s.LoadState,
		}
		if s.ActiveState == "active" {
			props, err := conn.GetUnitTypePropertiesContext(ctx, s.Name, "Service")
			if err == nil {
				if pid, ok := props["MainPID"].(uint32); ok && pid > 0 {
					unit.MainPID = int(pid)
				}
			} else {
				u.logger.Debug("unit properties", "unit", s.Name, "err", err)
			}
		}
		units = append(units, unit)
	}
	return units, nil
}
