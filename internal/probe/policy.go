package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Policy decides how many records a check draws from the index.
type Policy string

const (
	// EagerStopAtCap collects up to the configured cap, pacing between draws.
	EagerStopAtCap Policy = "eager"
	// StopAtFirst draws a single record with no pacing.
	StopAtFirst Policy = "first"
)

func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", EagerStopAtCap:
		return EagerStopAtCap, nil
	case StopAtFirst:
		return StopAtFirst, nil
	}
	return "", fmt.Errorf("unknown scan policy %q (want %q or %q)", raw, EagerStopAtCap, StopAtFirst)
}

// Pacer blocks between draws. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

type noPacer struct{}

func (noPacer) Wait(context.Context) error { return nil }

// NoPacer never blocks; tests and the stop-at-first policy use it.
var NoPacer Pacer = noPacer{}

// NewDrawPacer allows one draw per delay with no burst. Share one pacer
// between checkers so concurrent checks respect the index's limit together.
func NewDrawPacer(delay time.Duration) Pacer {
	if delay <= 0 {
		return NoPacer
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
