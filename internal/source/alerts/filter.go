package alerts

import (
	"sort"
	"strings"

	"github.com/nhle/climate-alerts/internal/model"
)

// SortBy orders filtered alerts.
type SortBy string

const (
	SortByDate     SortBy = "date"
	SortBySeverity SortBy = "severity"
)

// Filter selects alerts. Zero fields match everything.
type Filter struct {
	Type     model.AlertType
	Severity model.Severity
	Active   *bool
	Search   string
	SortBy   SortBy
}

// Match reports whether a passes the filter.
func (f Filter) Match(a model.Alert) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Active != nil && a.IsActive != *f.Active {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Apply returns the matching alerts, newest first or by descending
// severity.
func (f Filter) Apply(alerts []model.Alert) []model.Alert {
	var out []model.Alert
	for _, a := range alerts {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.SortBy == SortBySeverity {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Alerts returns the alerts from the last Refresh that pass filter.
func (f *Feed) Alerts(filter Filter) []model.Alert {
	return filter.Apply(f.All())
}

// Stats summarises an alert set.
type Stats struct {
	Total        int
	Active       int
	HighSeverity int
	ByType       map[model.AlertType]int
}

// Stats summarises the alerts from the last Refresh.
func (f *Feed) Stats() Stats {
	return ComputeStats(f.All())
}

// ComputeStats summarises alerts.
func ComputeStats(alerts []model.Alert) Stats {
	s := Stats{Total: len(alerts), ByType: make(map[model.AlertType]int)}
	for _, a := range alerts {
		if a.IsActive {
			s.Active++
		}
		if a.Severity == model.PriorityHigh {
			s.HighSeverity++
		}
		s.ByType[a.Type]++
	}
	return s
}
