package model

import "time"

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current local time, monotonic reading included.
func (RealClock) Now() time.Time { return time.Now() }
