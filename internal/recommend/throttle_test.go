package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTryAcquire(t *testing.T) {
	base := july
	cases := []struct {
		name     string
		now      time.Time
		lastFire time.Time
		want     bool
	}{
		{"never fired", base, time.Time{}, true},
		{"inside interval", base.Add(29 * time.Second), base, false},
		{"exactly at interval", base.Add(30 * time.Second), base, true},
		{"after interval", base.Add(5 * time.Minute), base, true},
		{"clock behind last fire", base.Add(-time.Second), base, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TryAcquire(tc.now, tc.lastFire, DefaultMinInterval))
		})
	}
}

func TestTryAcquire_ZeroIntervalAlwaysPasses(t *testing.T) {
	assert.True(t, TryAcquire(july, july, 0))
}

func TestThrottle_AcquireAdvancesOnlyOnSuccess(t *testing.T) {
	var th Throttle

	th, ok := th.Acquire(july, DefaultMinInterval)
	assert.True(t, ok)
	assert.True(t, th.LastFire.Equal(july))

	denied, ok := th.Acquire(july.Add(10*time.Second), DefaultMinInterval)
	assert.False(t, ok)
	assert.Equal(t, th, denied)

	later := july.Add(31 * time.Second)
	th, ok = th.Acquire(later, DefaultMinInterval)
	assert.True(t, ok)
	assert.True(t, th.LastFire.Equal(later))
}
