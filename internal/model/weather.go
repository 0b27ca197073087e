package model

import "time"

// Weather is a point-in-time reading from the weather provider.
type Weather struct {
	// Temperature in degrees Celsius.
	Temperature float64 `json:"temperature"`

	// Humidity is relative humidity in percent (0-100).
	Humidity float64 `json:"humidity"`

	// WindSpeed in km/h.
	WindSpeed float64 `json:"wind_speed"`

	// Rainfall in millimetres.
	Rainfall float64 `json:"rainfall"`

	// Location is the place name the reading refers to.
	Location string `json:"location,omitempty"`

	// LastUpdated is when the provider produced this reading.
	LastUpdated time.Time `json:"last_updated"`
}
