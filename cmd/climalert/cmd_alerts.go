package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/climate-alerts/internal/logging"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/source/alerts"
)

var alertsFlags struct {
	all      bool
	typ      string
	severity string
	search   string
	sort     string
	share    string
	stats    bool
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show the current climate alerts for the region",
	RunE:  runAlerts,
}

func init() {
	f := alertsCmd.Flags()
	f.BoolVar(&alertsFlags.all, "all", false, "Include inactive alerts")
	f.StringVar(&alertsFlags.typ, "type", "", "Alert type (helada|lluvia_intensa|sequia|granizo|viento_fuerte)")
	f.StringVar(&alertsFlags.severity, "severity", "", "Severity (alto|medio|bajo)")
	f.StringVar(&alertsFlags.search, "search", "", "Case-insensitive title filter")
	f.StringVar(&alertsFlags.sort, "sort", string(alerts.SortByDate), "Sort order (date|severity)")
	f.StringVar(&alertsFlags.share, "share", "", "Print the share message and link for this alert id")
	f.BoolVar(&alertsFlags.stats, "stats", false, "Print alert counts instead of the list")
}

// alertFilter builds the feed filter from the command flags.
func alertFilter(all bool, typ, severity, search, sortBy string) (alerts.Filter, error) {
	f := alerts.Filter{
		Type:     model.AlertType(typ),
		Severity: model.Severity(severity),
		Search:   search,
		SortBy:   alerts.SortBy(sortBy),
	}
	switch f.SortBy {
	case alerts.SortByDate, alerts.SortBySeverity:
	default:
		return alerts.Filter{}, fmt.Errorf("unknown sort %q", sortBy)
	}
	if !all {
		active := true
		f.Active = &active
	}
	return f, nil
}

func runAlerts(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg.Logging, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer logs.Close()

	feed := alerts.NewSeededFeed(cfg.Alerts.Seed, model.RealClock{}, logging.New("alerts"))
	if err := feed.Refresh(cmd.Context()); err != nil {
		return fmt.Errorf("refreshing alerts: %w", err)
	}
	w := cmd.OutOrStdout()

	if alertsFlags.share != "" {
		a, ok := feed.AlertByID(alertsFlags.share)
		if !ok {
			return fmt.Errorf("no alert with id %q", alertsFlags.share)
		}
		fmt.Fprintln(w, alerts.ShareMessage(a))
		fmt.Fprintln(w)
		fmt.Fprintln(w, alerts.ShareURL(a))
		return nil
	}
	if alertsFlags.stats {
		printAlertStats(w, feed.Stats())
		return nil
	}

	filter, err := alertFilter(alertsFlags.all, alertsFlags.typ, alertsFlags.severity, alertsFlags.search, alertsFlags.sort)
	if err != nil {
		return err
	}
	printAlerts(w, feed.Alerts(filter))
	return nil
}
