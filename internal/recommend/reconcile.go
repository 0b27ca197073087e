package recommend

import (
	"sort"
	"time"

	"github.com/nhle/climate-alerts/internal/model"
)

// ReconcileStats counts what a reconciliation did.
type ReconcileStats struct {
	Expired    int
	Duplicates int
	Added      int
}

// Reconcile merges a candidate batch into the existing list. Expired
// entries, existing or candidate, are dropped. Candidates equivalent to a
// surviving entry or to an earlier candidate are discarded and the rest
// are appended. The result is ordered newest first. Surviving entries are
// carried over unchanged, read state included. Neither input slice is
// modified.
func Reconcile(existing, candidates []model.Recommendation, now time.Time) []model.Recommendation {
	out, _ := ReconcileWithStats(existing, candidates, now)
	return out
}

// ReconcileWithStats is Reconcile that also reports counts.
func ReconcileWithStats(
	existing, candidates []model.Recommendation,
	now time.Time,
) ([]model.Recommendation, ReconcileStats) {
	var stats ReconcileStats

	out := make([]model.Recommendation, 0, len(existing)+len(candidates))
	for _, r := range existing {
		if r.Expired(now) {
			stats.Expired++
			continue
		}
		out = append(out, r)
	}

	for _, c := range candidates {
		if c.Expired(now) {
			stats.Expired++
			continue
		}
		if containsEquivalent(out, c) {
			stats.Duplicates++
			continue
		}
		out = append(out, c)
		stats.Added++
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, stats
}

// DropExpired returns the entries still valid at now.
func DropExpired(recs []model.Recommendation, now time.Time) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(recs))
	for _, r := range recs {
		if !r.Expired(now) {
			out = append(out, r)
		}
	}
	return out
}

func containsEquivalent(recs []model.Recommendation, c model.Recommendation) bool {
	for _, r := range recs {
		if r.Equivalent(c) {
			return true
		}
	}
	return false
}
