package recommend

import "time"

// DefaultMinInterval is the default spacing between generation cycles.
const DefaultMinInterval = 30 * time.Second

// TryAcquire reports whether a generation cycle may run at now given the
// time of the last one. A zero lastFire means no cycle has run. On success
// the caller records now as the new lastFire.
func TryAcquire(now, lastFire time.Time, minInterval time.Duration) bool {
	if lastFire.IsZero() {
		return true
	}
	return now.Sub(lastFire) >= minInterval
}

// Throttle is the caller-owned throttle state.
type Throttle struct {
	LastFire time.Time
}

// Acquire returns the updated state and true when a cycle may run at now.
// On denial the state is returned unchanged.
func (t Throttle) Acquire(now time.Time, minInterval time.Duration) (Throttle, bool) {
	if !TryAcquire(now, t.LastFire, minInterval) {
		return t, false
	}
	return Throttle{LastFire: now}, true
}
