package model

import "time"

// AlertType identifies the climate hazard behind an alert.
type AlertType string

const (
	AlertFrost      AlertType = "helada"
	AlertHeavyRain  AlertType = "lluvia_intensa"
	AlertDrought    AlertType = "sequia"
	AlertHail       AlertType = "granizo"
	AlertStrongWind AlertType = "viento_fuerte"
)

// Severity is the alert level assigned by the alert feed. It shares its
// vocabulary with Priority so alert-driven advice can inherit it directly.
type Severity = Priority

// Alert is a climate alert as supplied by the alert feed.
type Alert struct {
	ID              string    `json:"id"`
	Type            AlertType `json:"type"`
	Severity        Severity  `json:"severity"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Recommendations []string  `json:"recommendations,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	ValidUntil      time.Time `json:"valid_until"`
	AffectedAreas   []string  `json:"affected_areas,omitempty"`
}
