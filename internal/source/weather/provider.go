package weather

import (
	"fmt"

	"github.com/nhle/climate-alerts/internal/external"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/source"
)

const userAgent = "climalert/1.0"

// New builds the provider selected by cfg.Provider.
func New(cfg model.WeatherConfig, apiKey string, clock model.Clock, opts ...external.Option) (source.WeatherProvider, error) {
	switch cfg.Provider {
	case "simulated", "":
		return NewSimulated(cfg.Location, cfg.Seed, clock), nil
	case "open-meteo":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOpenMeteoURL
		}
		client := external.NewClient(baseURL, "open-meteo", userAgent, opts...)
		return NewOpenMeteo(client, cfg.Latitude, cfg.Longitude, cfg.Location, apiKey, clock), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", cfg.Provider)
	}
}
