// Package weather provides current-conditions readings, either simulated
// or from the Open-Meteo forecast API.
package weather

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/nhle/climate-alerts/internal/model"
)

// Initial simulated conditions for Huancavelica Centro.
const (
	initialTemperature = 18.5
	initialHumidity    = 65
	initialWindSpeed   = 12
	initialRainfall    = 3.2
)

// Simulated random-walks from a fixed starting reading. The first call to
// Current returns the starting reading; each later call takes one step.
type Simulated struct {
	location string
	clock    model.Clock

	mu      sync.Mutex
	rng     *rand.Rand
	current *model.Weather
}

// NewSimulated creates a simulated provider. Seed 0 seeds from the clock.
func NewSimulated(location string, seed int64, clock model.Clock) *Simulated {
	if clock == nil {
		clock = model.RealClock{}
	}
	s := uint64(seed)
	if seed == 0 {
		s = uint64(clock.Now().UnixNano())
	}
	return &Simulated{
		location: location,
		clock:    clock,
		rng:      rand.New(rand.NewPCG(s, s>>7)),
	}
}

// Current returns the next reading.
func (s *Simulated) Current(ctx context.Context) (model.Weather, error) {
	if err := ctx.Err(); err != nil {
		return model.Weather{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.current == nil {
		s.current = &model.Weather{
			Temperature: initialTemperature,
			Humidity:    initialHumidity,
			WindSpeed:   initialWindSpeed,
			Rainfall:    initialRainfall,
			Location:    s.location,
			LastUpdated: now,
		}
		return *s.current, nil
	}

	w := *s.current
	w.Temperature += (s.rng.Float64() - 0.5) * 2
	w.Humidity = clamp(w.Humidity+(s.rng.Float64()-0.5)*10, 0, 100)
	w.WindSpeed = math.Max(0, w.WindSpeed+(s.rng.Float64()-0.5)*5)
	w.Rainfall = math.Max(0, w.Rainfall+(s.rng.Float64()-0.5)*1)
	w.LastUpdated = now
	s.current = &w
	return w, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
