// Package selector picks sinks and managed streams out of a parsed snapshot.
package selector

import (
	"slices"

	"github.com/modoterra/fxswitch/pkg/core"
)

// ValidSinks keeps the sinks whose description is in allowed, preserving
// input order.
func ValidSinks(all []core.Sink, allowed []string) []core.Sink {
	valid := make([]core.Sink, 0, len(all))
	for _, s := range all {
		if slices.Contains(allowed, s.Description) {
			valid = append(valid, s)
		}
	}
	return valid
}

// FindManagedStreamInput returns the first input carrying exactly the given
// identity. An empty identity never matches, so inputs without properties
// are not mistaken for the managed stream.
func FindManagedStreamInput(inputs []core.SinkInput, id core.StreamIdentity, role core.Role) (core.SinkInput, error) {
	if id.IsZero() {
		return core.SinkInput{}, &core.NotFoundError{What: "stream", Role: role, Want: "no identity configured"}
	}
	for _, in := range inputs {
		if id.Matches(in) {
			return in, nil
		}
	}
	return core.SinkInput{}, &core.NotFoundError{What: "stream", Role: role, Want: id.String()}
}

// PickAlternateSink returns the first valid sink whose index differs from
// current.
//
// This only does the right thing with exactly two valid sinks. With three or
// more it always lands on the first non-current sink in list order, so
// repeated toggles bounce between two of them.
func PickAlternateSink(valid []core.Sink, current int) (core.Sink, error) {
	for _, s := range valid {
		if s.Index != current {
			return s, nil
		}
	}
	return core.Sink{}, &core.NotFoundError{What: "sink", Role: core.RoleOutput, Want: "alternate to current sink"}
}

// PickByDescription returns the first sink whose description equals target.
func PickByDescription(sinks []core.Sink, target string) (core.Sink, error) {
	for _, s := range sinks {
		if s.Description == target {
			return s, nil
		}
	}
	return core.Sink{}, &core.NotFoundError{What: "sink", Want: target}
}
