package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/climate-alerts/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where recommendations are kept and when they were last saved",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			s, err := collectStatus(ctx, cfg.Store.Driver, st)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

// storeStatus is what `climalert status` reports.
type storeStatus struct {
	Driver         string
	Location       string
	Persisting     bool
	Saved          bool
	SavedAt        time.Time
	SavedCount     int
	Total          int
	Unread         int
	PriorityUnread int
}

func collectStatus(ctx context.Context, driver string, st *store.Store) (storeStatus, error) {
	s := storeStatus{
		Driver:         driver,
		Location:       st.Location(),
		Persisting:     st.Persisting(),
		Total:          len(st.Recommendations()),
		Unread:         st.UnreadCount(),
		PriorityUnread: len(st.PriorityUnread()),
	}
	var err error
	s.SavedAt, s.SavedCount, s.Saved, err = st.LastSave(ctx)
	if err != nil {
		return storeStatus{}, err
	}
	return s, nil
}
