// Package system provides the wall clock used for run timestamps.
package system

import "time"

// Clock reports UTC wall time truncated to milliseconds, the precision the
// side file and run notifications carry.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
