package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh every source once and generate recommendations",
	Long: "Fetch crops, alerts and weather concurrently, run one engine cycle and\n" +
		"persist the result. Sources that fail are reported and skipped.",
	RunE: runSync,
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg.Logging, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer logs.Close()

	svc, err := openServices(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	out, refreshErr := svc.poller.RefreshAll(cmd.Context())
	w := cmd.OutOrStdout()
	printOutcome(w, out, svc.poller.GetStatuses())
	fmt.Fprintf(w, "%d recommendation(s), %d unread\n", len(svc.store.Recommendations()), svc.store.UnreadCount())
	if refreshErr != nil && cmd.Context().Err() != nil {
		return refreshErr
	}
	return nil
}
