// Package procfs finds processes by name under /proc.
package procfs

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	proc "github.com/prometheus/procfs"
)

// Finder scans a proc filesystem.
type Finder struct {
	root string
}

// New returns a finder over root; an empty root means /proc.
func New(root string) *Finder {
	if root == "" {
		root = proc.DefaultMountPoint
	}
	return &Finder{root: root}
}

// Find returns the PIDs of processes whose command line has an argument
// with the given base name, in ascending order.
func (f *Finder) Find(name string) ([]int, error) {
	fs, err := proc.NewFS(f.root)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.root, err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.root, err)
	}
	sort.Sort(procs)

	var pids []int
	for _, p := range procs {
		args, err := p.CmdLine()
		if err != nil {
			continue // exited while scanning
		}
		if matches(args, name) {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}

// Running reports whether any process matches name.
func (f *Finder) Running(name string) (bool, error) {
	pids, err := f.Find(name)
	return len(pids) > 0, err
}

func matches(args []string, name string) bool {
	return slices.ContainsFunc(args, func(arg string) bool {
		return arg != "" && filepath.Base(arg) == name
	})
}
