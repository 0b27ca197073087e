package weather

import (
	"context"
	"strconv"
	"time"

	"github.com/nhle/climate-alerts/internal/external"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/source"
)

// DefaultOpenMeteoURL is the free Open-Meteo API. Commercial keys use
// customer-api.open-meteo.com instead.
const DefaultOpenMeteoURL = "https://api.open-meteo.com"

// currentFields are the Open-Meteo "current" variables mapped onto
// model.Weather.
const currentFields = "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation"

type forecastResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		Precipitation float64 `json:"precipitation"`
	} `json:"current"`
}

// OpenMeteo fetches current conditions for a fixed coordinate.
type OpenMeteo struct {
	client    *external.Client
	latitude  float64
	longitude float64
	location  string
	apiKey    string
	clock     model.Clock
}

// NewOpenMeteo creates a provider for the coordinate. apiKey may be empty.
func NewOpenMeteo(client *external.Client, lat, lon float64, location, apiKey string, clock model.Clock) *OpenMeteo {
	if clock == nil {
		clock = model.RealClock{}
	}
	return &OpenMeteo{
		client:    client,
		latitude:  lat,
		longitude: lon,
		location:  location,
		apiKey:    apiKey,
		clock:     clock,
	}
}

// Current fetches the latest observation. Failures are reported as
// source.ErrUnavailable.
func (o *OpenMeteo) Current(ctx context.Context) (model.Weather, error) {
	query := map[string]string{
		"latitude":        strconv.FormatFloat(o.latitude, 'f', 4, 64),
		"longitude":       strconv.FormatFloat(o.longitude, 'f', 4, 64),
		"current":         currentFields,
		"wind_speed_unit": "kmh",
		"timezone":        "auto",
	}
	if o.apiKey != "" {
		query["apikey"] = o.apiKey
	}

	var resp forecastResponse
	if err := o.client.GetJSON(ctx, "/v1/forecast", query, &resp); err != nil {
		return model.Weather{}, source.Unavailable(source.KindWeather, err)
	}

	return model.Weather{
		Temperature: resp.Current.Temperature,
		Humidity:    resp.Current.Humidity,
		WindSpeed:   resp.Current.WindSpeed,
		Rainfall:    resp.Current.Precipitation,
		Location:    o.location,
		LastUpdated: o.observedAt(resp),
	}, nil
}

// observedAt parses the observation time, which Open-Meteo reports in the
// local time of the requested timezone without an offset.
func (o *OpenMeteo) observedAt(resp forecastResponse) time.Time {
	loc := time.UTC
	if resp.Timezone != "" {
		if l, err := time.LoadLocation(resp.Timezone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation("2006-01-02T15:04", resp.Current.Time, loc)
	if err != nil {
		return o.clock.Now()
	}
	return t
}
