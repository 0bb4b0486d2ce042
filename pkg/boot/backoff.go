package boot

import (
	"fmt"
	"time"
)

// Backoff decides how long to wait between boot passes.
type Backoff interface {
	// Initial is the delay before any failure has been seen.
	Initial() time.Duration
	// Next returns the delay after one more failure.
	Next(current time.Duration) time.Duration
}

// Linear adds Step after every failure, capped at Max.
type Linear struct {
	Start time.Duration
	Step  time.Duration
	Max   time.Duration
}

func (l Linear) Initial() time.Duration { return l.Start }

func (l Linear) Next(current time.Duration) time.Duration {
	if current < l.Max {
		current += l.Step
	}
	return min(current, l.Max)
}

// Multiplicative scales the delay by Factor after every failure, capped at Max.
type Multiplicative struct {
	Start  time.Duration
	Factor float64
	Max    time.Duration
}

func (m Multiplicative) Initial() time.Duration { return m.Start }

func (m Multiplicative) Next(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * m.Factor)
	return min(next, m.Max)
}

// Strategy names accepted by NewBackoff.
const (
	StrategyLinear         = "linear"
	StrategyMultiplicative = "multiplicative"
)

// NewBackoff builds a backoff policy by name.
func NewBackoff(strategy string, start, step time.Duration, factor float64, max time.Duration) (Backoff, error) {
	switch strategy {
	case StrategyLinear, "":
		return Linear{Start: start, Step: step, Max: max}, nil
	case StrategyMultiplicative:
		return Multiplicative{Start: start, Factor: factor, Max: max}, nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q", strategy)
	}
}
