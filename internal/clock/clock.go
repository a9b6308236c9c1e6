// Package clock abstracts wall time so workflow services can stamp
// provenance entries and lifecycle timestamps deterministically in tests.
package clock

import "time"

// Clock returns the current instant. Implementations always report UTC;
// timestamps cross the wire and the database and must not carry a zone.
type Clock interface {
	Now() time.Time
}

// NewSystem returns the production clock, backed by time.Now.
func NewSystem() Clock {
	return wallClock{}
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now().UTC()
}

// NewFixed returns a clock frozen at t, for tests.
func NewFixed(t time.Time) Clock {
	return frozenClock{t: t.UTC()}
}

type frozenClock struct {
	t time.Time
}

func (c frozenClock) Now() time.Time {
	return c.t
}
