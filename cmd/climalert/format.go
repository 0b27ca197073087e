package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/recommend"
	"github.com/nhle/climate-alerts/internal/source/alerts"
	"github.com/nhle/climate-alerts/internal/source/crops"
	appsync "github.com/nhle/climate-alerts/internal/sync"
	"github.com/nhle/climate-alerts/internal/ui/reclist"
)

const dateLayout = "2006-01-02"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// printOutcome reports a one-shot sync: per-source status, then what the
// engine did with the snapshot.
func printOutcome(w io.Writer, out recommend.Outcome, statuses []appsync.SyncStatus) {
	for _, s := range statuses {
		line := fmt.Sprintf("%-8s %s", s.Kind, s.State)
		if s.Error != nil {
			line += ": " + s.Error.Error()
		}
		fmt.Fprintln(w, line)
	}
	if !out.Generated {
		fmt.Fprintf(w, "No generation (%s)\n", out.Skip)
		return
	}
	fmt.Fprintf(w, "Generated %d candidate(s): %d added, %d duplicate, %d expired\n",
		out.Candidates, out.Stats.Added, out.Stats.Duplicates, out.Stats.Expired)
}

// printRecommendations lists recs newest first, one per row.
func printRecommendations(w io.Writer, recs []model.Recommendation, now time.Time) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No recommendations.")
		return
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "\tID\tPriority\tType\tTitle\tCrop\tAge\n")
	for _, r := range recs {
		marker := "●"
		if r.IsRead {
			marker = " "
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, shortID(r.ID), r.Priority, r.Type, r.Title, r.RelatedCrop, reclist.RelativeTime(r.CreatedAt, now))
	}
	_ = tw.Flush()
}

// printRecommendation shows one entry with its numbered actions.
func printRecommendation(w io.Writer, r model.Recommendation) {
	fmt.Fprintf(w, "%s\n", r.Title)
	fmt.Fprintf(w, "  ID:        %s\n", r.ID)
	fmt.Fprintf(w, "  Priority:  %s\n", r.Priority)
	fmt.Fprintf(w, "  Type:      %s\n", r.Type)
	if r.RelatedCrop != "" {
		fmt.Fprintf(w, "  Crop:      %s\n", r.RelatedCrop)
	}
	if r.ValidUntil != nil {
		fmt.Fprintf(w, "  Valid:     until %s\n", r.ValidUntil.Format(time.DateTime))
	}
	fmt.Fprintf(w, "\n  %s\n", r.Description)
	for i, a := range r.Actions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, a)
	}
}

// printAlerts lists alerts, one per row.
func printAlerts(w io.Writer, list []model.Alert) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No alerts.")
		return
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "ID\tSeverity\tType\tActive\tTitle\tAreas\n")
	for _, a := range list {
		active := "no"
		if a.IsActive {
			active = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Severity, a.Type, active, a.Title, strings.Join(a.AffectedAreas, ", "))
	}
	_ = tw.Flush()
}

func printAlertStats(w io.Writer, s alerts.Stats) {
	fmt.Fprintf(w, "Total %d, active %d, high severity %d\n", s.Total, s.Active, s.HighSeverity)
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-15s %d\n", t, s.ByType[model.AlertType(t)])
	}
}

// printCrops lists crops with their age in days.
func printCrops(w io.Writer, list []model.Crop, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No crops registered.")
		return
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "ID\tName\tType\tLocation\tPlanted\tDays\n")
	for _, c := range list {
		planted, days := "-", "-"
		if d, ok := c.DaysSincePlanting(now); ok {
			planted = c.PlantingDate.Format(dateLayout)
			days = fmt.Sprintf("%d", d)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", shortID(c.ID), c.Name, c.Type, c.Location, planted, days)
	}
	_ = tw.Flush()
}

func printCropStats(w io.Writer, s crops.Stats) {
	fmt.Fprintf(w, "Total %d\n", s.Total)
	for _, t := range s.Types() {
		fmt.Fprintf(w, "  %-10s %d\n", t, s.ByType[t])
	}
}

// printStatus reports the store location, the last save and the counts.
func printStatus(w io.Writer, s storeStatus) {
	fmt.Fprintf(w, "Store:     %s %s\n", s.Driver, s.Location)
	switch {
	case !s.Saved:
		fmt.Fprintln(w, "Saved:     never")
	default:
		fmt.Fprintf(w, "Saved:     %s (%d entries)\n", s.SavedAt.Local().Format(time.DateTime), s.SavedCount)
	}
	if !s.Persisting {
		fmt.Fprintln(w, "Warning:   stored list could not be read; changes are not being saved")
	}
	fmt.Fprintf(w, "Entries:   %d, %d unread, %d high priority unread\n", s.Total, s.Unread, s.PriorityUnread)
}

// shortID trims long generated ids for table output. Commands accept any
// unique prefix.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// resolveID finds the single recommendation whose id starts with prefix.
func resolveID(recs []model.Recommendation, prefix string) (string, error) {
	for _, r := range recs {
		if r.ID == prefix {
			return r.ID, nil
		}
	}
	var match string
	for _, r := range recs {
		if prefix != "" && strings.HasPrefix(r.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			match = r.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no recommendation with id %q", prefix)
	}
	return match, nil
}
