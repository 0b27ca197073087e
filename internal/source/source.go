package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/climate-alerts/internal/model"
)

// ErrUnavailable indicates a source could not produce a fresh reading.
// The poller keeps the previous snapshot for that source and retries on its
// next tick.
var ErrUnavailable = errors.New("source unavailable")

// Kind identifies one of the three upstream collaborators.
type Kind string

const (
	KindCrops   Kind = "crops"
	KindAlerts  Kind = "alerts"
	KindWeather Kind = "weather"
)

// UnavailableError wraps the underlying failure of a source refresh.
type UnavailableError struct {
	Kind Kind
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Kind, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Unavailable wraps err as an UnavailableError for kind.
func Unavailable(kind Kind, err error) error {
	return &UnavailableError{Kind: kind, Err: err}
}

// CropRegistry lists the farmer's tracked crops.
type CropRegistry interface {
	// Crops returns the current crop list.
	Crops(ctx context.Context) ([]model.Crop, error)
}

// AlertFeed reports climate alerts.
type AlertFeed interface {
	// Refresh fetches the current alert set.
	Refresh(ctx context.Context) error

	// ActiveAlerts returns the alerts in force as of the last Refresh.
	ActiveAlerts() []model.Alert
}

// WeatherProvider reports current conditions.
type WeatherProvider interface {
	// Current returns the latest observation. Implementations that poll a
	// remote service fetch on each call.
	Current(ctx context.Context) (model.Weather, error)
}

// Watcher is implemented by sources that can push change notifications
// instead of being polled.
type Watcher interface {
	// Changes signals that the source has new data.
	Changes() <-chan struct{}
}
