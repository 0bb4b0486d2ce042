package pactl

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/modoterra/fxswitch/pkg/core"
)

var (
	sinkMarkerRe      = regexp.MustCompile(`^Sink #(\d+)$`)
	sinkNameRe        = regexp.MustCompile(`^Name:? (.+)$`)
	sinkStateRe       = regexp.MustCompile(`^State (.)$`)
	sinkDescriptionRe = regexp.MustCompile(`^Description: (.+)$`)

	inputMarkerRe    = regexp.MustCompile(`^index: (\d+)$`)
	inputAppNameRe   = regexp.MustCompile(`^application\.name = "([^"]+)"$`)
	inputAppIDRe     = regexp.MustCompile(`^application\.id = "([^"]+)"$`)
	inputMediaNameRe = regexp.MustCompile(`^media\.name = "([^"]+)"$`)
	inputSinkRe      = regexp.MustCompile(`^sink: (\d+)`)
)

const reasonNoRecord = "attribute before first record"

// fold accumulates records line by line. current is nil until the first
// marker line has been seen.
type fold[T any] struct {
	current *T
	done    []T
}

func (f *fold[T]) start(rec T) {
	f.flush()
	f.current = &rec
}

func (f *fold[T]) flush() {
	if f.current != nil {
		f.done = append(f.done, *f.current)
		f.current = nil
	}
}

func (f *fold[T]) result() []T {
	f.flush()
	return f.done
}

// ParseSinks parses "pactl list sinks" output. Records are returned in the
// order their "Sink #N" marker lines appear.
func ParseSinks(output string) ([]core.Sink, error) {
	var f fold[core.Sink]

	err := eachLine(output, func(n int, raw string) error {
		line := strings.TrimSpace(raw)

		if m := sinkMarkerRe.FindStringSubmatch(strings.TrimRight(raw, "\r")); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				return &core.ParseError{Line: n, Text: line, Err: err}
			}
			f.start(core.Sink{Index: idx, State: core.StateIdle})
			return nil
		}

		name := sinkNameRe.FindStringSubmatch(line)
		state := sinkStateRe.FindStringSubmatch(line)
		desc := sinkDescriptionRe.FindStringSubmatch(line)
		if name == nil && state == nil && desc == nil {
			return nil
		}
		if f.current == nil {
			return &core.ParseError{Line: n, Text: line, Reason: reasonNoRecord}
		}

		switch {
		case name != nil:
			f.current.Name = name[1]
		case state != nil:
			s, ok := core.ParseState(state[1])
			if !ok {
				return &core.ParseError{
					Line: n,
					Text: line,
					Err:  &core.UnknownStateError{SinkIndex: f.current.Index, Code: state[1]},
				}
			}
			f.current.State = s
		case desc != nil:
			f.current.Description = desc[1]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f.result(), nil
}

// ParseSinkInputs parses "pacmd list-sink-inputs" output. A sink input whose
// "sink:" line is missing keeps core.NoSink.
func ParseSinkInputs(output string) ([]core.SinkInput, error) {
	var f fold[core.SinkInput]

	err := eachLine(output, func(n int, raw string) error {
		line := strings.TrimSpace(raw)

		if m := inputMarkerRe.FindStringSubmatch(line); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				return &core.ParseError{Line: n, Text: line, Err: err}
			}
			f.start(core.SinkInput{Index: idx, Sink: core.NoSink})
			return nil
		}

		appName := inputAppNameRe.FindStringSubmatch(line)
		appID := inputAppIDRe.FindStringSubmatch(line)
		media := inputMediaNameRe.FindStringSubmatch(line)
		sink := inputSinkRe.FindStringSubmatch(line)
		if appName == nil && appID == nil && media == nil && sink == nil {
			return nil
		}
		if f.current == nil {
			return &core.ParseError{Line: n, Text: line, Reason: reasonNoRecord}
		}

		switch {
		case appName != nil:
			f.current.AppName = appName[1]
		case appID != nil:
			f.current.AppID = appID[1]
		case media != nil:
			f.current.MediaName = media[1]
		case sink != nil:
			idx, err := strconv.Atoi(sink[1])
			if err != nil {
				return &core.ParseError{Line: n, Text: line, Err: err}
			}
			f.current.Sink = idx
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f.result(), nil
}

func eachLine(output string, fn func(n int, line string) error) error {
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		if err := fn(n, scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}
