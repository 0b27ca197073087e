package recommend

import (
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nhle/climate-alerts/internal/model"
)

// Snapshot is one consistent reading of the three upstream sources.
// Weather is nil until the provider has produced a first reading.
type Snapshot struct {
	Crops   []model.Crop
	Alerts  []model.Alert
	Weather *model.Weather
}

// Empty reports whether there is nothing to advise on yet.
func (s Snapshot) Empty() bool {
	return len(s.Crops) == 0 && len(s.Alerts) == 0
}

// Clone returns a deep copy so later mutations by a source cannot leak
// into a retained snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Crops:  slices.Clone(s.Crops),
		Alerts: make([]model.Alert, len(s.Alerts)),
	}
	if s.Alerts == nil {
		out.Alerts = nil
	}
	for i, a := range s.Alerts {
		a.Recommendations = slices.Clone(a.Recommendations)
		a.AffectedAreas = slices.Clone(a.AffectedAreas)
		out.Alerts[i] = a
	}
	if s.Weather != nil {
		w := *s.Weather
		out.Weather = &w
	}
	return out
}

// snapshotEquality treats nil and empty slices alike; time values compare
// by instant through their Equal method.
var snapshotEquality = []cmp.Option{
	cmpopts.EquateEmpty(),
}

// HasMeaningfulChange reports whether cur differs in value from prev.
// A nil prev means no cycle has run yet and always counts as a change.
func HasMeaningfulChange(prev *Snapshot, cur Snapshot) bool {
	if prev == nil {
		return true
	}
	return !cmp.Equal(prev.Crops, cur.Crops, snapshotEquality...) ||
		!cmp.Equal(prev.Alerts, cur.Alerts, snapshotEquality...) ||
		!cmp.Equal(prev.Weather, cur.Weather, snapshotEquality...)
}

// Diff returns a human-readable description of what changed between two
// snapshots, for debug logging.
func Diff(prev *Snapshot, cur Snapshot) string {
	if prev == nil {
		return "initial snapshot"
	}
	return cmp.Diff(*prev, cur, snapshotEquality...)
}
