package core

import (
	"fmt"
	"strings"
)

// ParseError reports malformed output from an audio-control command.
type ParseError struct {
	Line   int    // 1-based line number in the command output
	Text   string // offending line, trimmed
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("parse line %d %q: %s", e.Line, e.Text, msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnknownStateError is raised for a sink state code other than I or R.
type UnknownStateError struct {
	SinkIndex int
	Code      string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown sink (index: %d) state: %s", e.SinkIndex, e.Code)
}

// NotFoundError reports that an expected sink or stream is absent from the
// current snapshot.
type NotFoundError struct {
	What string // "sink" or "stream"
	Role Role
	Want string
}

func (e *NotFoundError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("%s %s not found: %s", e.Role, e.What, e.Want)
	}
	return fmt.Sprintf("%s not found: %s", e.What, e.Want)
}

// SwitchError reports a failed move of a sink input.
type SwitchError struct {
	Stream   int
	Sink     int
	Output   string // captured stdout, verbatim
	ExitCode int
	Err      error
}

func (e *SwitchError) Error() string {
	var parts []string
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if e.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("exit status %d", e.ExitCode))
	}
	if e.Output != "" {
		parts = append(parts, e.Output)
	}
	return fmt.Sprintf("move sink-input %d to sink %d: %s", e.Stream, e.Sink, strings.Join(parts, ": "))
}

func (e *SwitchError) Unwrap() error { return e.Err }
