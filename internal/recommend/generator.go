package recommend

import (
	"time"

	"github.com/nhle/climate-alerts/internal/model"
)

// Generate applies the rule table to the given snapshot and returns a
// fresh candidate batch. The output depends only on its arguments.
func Generate(
	crops []model.Crop,
	alerts []model.Alert,
	weather *model.Weather,
	now time.Time,
) []model.Recommendation {
	return GenerateWith(Rules, Input{
		Crops:   crops,
		Alerts:  alerts,
		Weather: weather,
		Now:     now,
	})
}

// GenerateWith evaluates the given rules in order and concatenates
// their output.
func GenerateWith(rules []Rule, in Input) []model.Recommendation {
	var out []model.Recommendation
	for _, r := range rules {
		out = append(out, r.Apply(in)...)
	}
	return out
}
