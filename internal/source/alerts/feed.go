// Package alerts provides the demo climate alert feed for the Huancavelica
// region. Alerts follow the hour of day and the season; an extra wind or
// hail alert is added at random.
package alerts

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/nhle/climate-alerts/internal/model"
)

// Feed generates the alert set on each Refresh and keeps the last one.
type Feed struct {
	clock  model.Clock
	logger *slog.Logger

	mu          sync.RWMutex
	rng         *rand.Rand
	alerts      []model.Alert
	lastUpdated time.Time
}

// NewFeed creates a feed drawing from rng. A nil rng is seeded from the
// clock.
func NewFeed(rng *rand.Rand, clock model.Clock, logger *slog.Logger) *Feed {
	if clock == nil {
		clock = model.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		seed := uint64(clock.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Feed{clock: clock, logger: logger, rng: rng}
}

// NewSeededFeed creates a feed with a deterministic source. Seed 0 means
// seed from the clock.
func NewSeededFeed(seed int64, clock model.Clock, logger *slog.Logger) *Feed {
	if seed == 0 {
		return NewFeed(nil, clock, logger)
	}
	return NewFeed(rand.New(rand.NewPCG(uint64(seed), 0)), clock, logger)
}

// Refresh regenerates the alert set for the current time.
func (f *Feed) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := f.clock.Now()

	f.mu.Lock()
	alerts := generate(now, f.rng)
	f.alerts = alerts
	f.lastUpdated = now
	f.mu.Unlock()

	f.logger.Debug("alerts refreshed", "total", len(alerts), "active", countActive(alerts))
	return nil
}

// ActiveAlerts returns the alerts in force as of the last Refresh.
func (f *Feed) ActiveAlerts() []model.Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []model.Alert
	for _, a := range f.alerts {
		if a.IsActive {
			out = append(out, cloneAlert(a))
		}
	}
	return out
}

// All returns every alert from the last Refresh, active or not.
func (f *Feed) All() []model.Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]model.Alert, len(f.alerts))
	for i, a := range f.alerts {
		out[i] = cloneAlert(a)
	}
	return out
}

// AlertByID returns the alert with the given id from the last Refresh.
func (f *Feed) AlertByID(id string) (model.Alert, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, a := range f.alerts {
		if a.ID == id {
			return cloneAlert(a), true
		}
	}
	return model.Alert{}, false
}

// LastUpdated returns the time of the last Refresh.
func (f *Feed) LastUpdated() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastUpdated
}

// generate builds the alert set for now. Timestamps are anchored to the
// start of the hour so refreshes within the same hour yield equal alerts.
// Callers hold the rng exclusively.
func generate(now time.Time, rng *rand.Rand) []model.Alert {
	hour := now.Hour()
	month := now.Month()
	now = now.Truncate(time.Hour)

	out := []model.Alert{frostAlert(now, hour), rainAlert(now, month), droughtAlert(now, month)}

	if rng.Float64() > 0.5 {
		if rng.IntN(2) == 0 {
			out = append(out, windAlert(now, rng.Float64() > 0.3))
		} else {
			out = append(out, hailAlert(now, rng.Float64() > 0.5))
		}
	}
	return out
}

func frostAlert(now time.Time, hour int) model.Alert {
	a := model.Alert{
		ID:              "1",
		Type:            model.AlertFrost,
		Severity:        model.PriorityMedium,
		Title:           "Riesgo de helada moderada",
		Description:     "Posibilidad de helada durante la madrugada. Monitoree condiciones.",
		Recommendations: []string{"Cubra cultivos sensibles", "Riegue temprano en la mañana", "Use coberturas térmicas"},
		IsActive:        hour >= 18 || hour <= 8,
		CreatedAt:       now.Add(-2 * time.Hour),
		ValidUntil:      now.Add(12 * time.Hour),
		AffectedAreas:   []string{"Huancavelica", "Acobamba", "Angaraes"},
	}
	if hour >= 18 || hour <= 6 {
		a.Severity = model.PriorityHigh
	}
	if hour >= 18 {
		a.Title = "Helada intensa pronosticada para esta noche"
		a.Description = "Se espera una helada severa esta noche con temperaturas bajo cero. Proteja sus cultivos."
	}
	return a
}

func rainySeason(m time.Month) bool {
	return m >= time.November || m <= time.April
}

func drySeason(m time.Month) bool {
	return m >= time.June && m <= time.October
}

func rainAlert(now time.Time, month time.Month) model.Alert {
	a := model.Alert{
		ID:              "2",
		Type:            model.AlertHeavyRain,
		Severity:        model.PriorityLow,
		Title:           "Posibilidad de lluvias aisladas",
		Description:     "Lluvias ligeras posibles en horas de la tarde.",
		Recommendations: []string{"Revisar sistemas de drenaje", "Almacenar agua de lluvia", "Proteger cultivos sensibles"},
		IsActive:        true,
		CreatedAt:       now.Add(-4 * time.Hour),
		ValidUntil:      now.Add(24 * time.Hour),
		AffectedAreas:   []string{"Acobamba", "Tayacaja"},
	}
	if rainySeason(month) {
		a.Severity = model.PriorityMedium
		a.Title = "Lluvias intensas en la región"
		a.Description = "Lluvias intensas durante la tarde y noche. Riesgo de inundaciones."
	}
	return a
}

func droughtAlert(now time.Time, month time.Month) model.Alert {
	a := model.Alert{
		ID:              "3",
		Type:            model.AlertDrought,
		Severity:        model.PriorityLow,
		Title:           "Condiciones secas normales",
		Description:     "Condiciones secas dentro de lo normal para la temporada.",
		Recommendations: []string{"Optimice riego", "Use mulch para conservar humedad", "Plante cultivos resistentes"},
		IsActive:        drySeason(month),
		CreatedAt:       now.Add(-24 * time.Hour),
		ValidUntil:      now.Add(7 * 24 * time.Hour),
		AffectedAreas:   []string{"Huancavelica", "Castrovirreyna"},
	}
	if drySeason(month) {
		a.Severity = model.PriorityHigh
		a.Title = "Alerta por sequía prolongada"
		a.Description = "Período de sequía prolongado. Implemente medidas de conservación de agua."
	}
	return a
}

func windAlert(now time.Time, active bool) model.Alert {
	return model.Alert{
		ID:              "4",
		Type:            model.AlertStrongWind,
		Severity:        model.PriorityMedium,
		Title:           "Vientos fuertes en zonas altas",
		Description:     "Vientos con ráfagas de hasta 40 km/h en zonas elevadas.",
		Recommendations: []string{"Asegure estructuras temporales", "Proteja cultivos bajos"},
		IsActive:        active,
		CreatedAt:       now.Add(-time.Hour),
		ValidUntil:      now.Add(6 * time.Hour),
		AffectedAreas:   []string{"Todas las zonas sobre 3500 msnm"},
	}
}

func hailAlert(now time.Time, active bool) model.Alert {
	return model.Alert{
		ID:              "5",
		Type:            model.AlertHail,
		Severity:        model.PriorityHigh,
		Title:           "Tormenta de granizo pronosticada",
		Description:     "Posibilidad de granizo en las próximas horas. Proteja cultivos y vehículos.",
		Recommendations: []string{"Cubra cultivos sensibles", "Proteja vehículos", "Permanezca en interiores"},
		IsActive:        active,
		CreatedAt:       now.Add(-30 * time.Minute),
		ValidUntil:      now.Add(3 * time.Hour),
		AffectedAreas:   []string{"Huancavelica Centro", "Ascensión"},
	}
}

func countActive(alerts []model.Alert) int {
	n := 0
	for _, a := range alerts {
		if a.IsActive {
			n++
		}
	}
	return n
}

func cloneAlert(a model.Alert) model.Alert {
	a.Recommendations = slices.Clone(a.Recommendations)
	a.AffectedAreas = slices.Clone(a.AffectedAreas)
	return a
}
