package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/store"
	"github.com/nhle/climate-alerts/internal/ui/reclist"
)

var listFlags struct {
	unread   bool
	priority bool
	typ      string
	search   string
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored recommendations, newest first",
	RunE:    runList,
}

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Show a recommendation and mark it as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Remove a recommendation",
	Args:  cobra.ExactArgs(1),
	RunE:  runDismiss,
}

var readAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every recommendation as read",
	RunE:  runReadAll,
}

func init() {
	f := listCmd.Flags()
	f.BoolVar(&listFlags.unread, "unread", false, "Only unread entries")
	f.BoolVar(&listFlags.priority, "priority", false, "Only unread high-priority entries")
	f.StringVar(&listFlags.typ, "type", "", "Only entries of this type (alerta|clima|cultivo|general)")
	f.StringVar(&listFlags.search, "search", "", "Case-insensitive text filter")
	listCmd.MarkFlagsMutuallyExclusive("unread", "priority")
}

// withStore opens the configured store, runs fn and flushes pending writes.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg.Logging, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer logs.Close()

	st, err := openStore(cmd.Context(), cfg.Store, model.RealClock{}.Now())
	if err != nil {
		return err
	}
	if err := fn(cmd.Context(), st); err != nil {
		_ = st.Close()
		return err
	}
	return st.Close()
}

// filterRecommendations applies the list flags.
func filterRecommendations(recs []model.Recommendation, unread, priority bool, typ, search string) []model.Recommendation {
	mode := reclist.FilterAll
	switch {
	case priority:
		mode = reclist.FilterPriority
	case unread:
		mode = reclist.FilterUnread
	}
	out := reclist.Apply(recs, mode, search)
	if typ == "" {
		return out
	}
	kept := out[:0]
	for _, r := range out {
		if string(r.Type) == typ {
			kept = append(kept, r)
		}
	}
	return kept
}

func runList(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(_ context.Context, st *store.Store) error {
		recs := filterRecommendations(st.Recommendations(),
			listFlags.unread, listFlags.priority, listFlags.typ, listFlags.search)
		printRecommendations(cmd.OutOrStdout(), recs, model.RealClock{}.Now())
		return nil
	})
}

func runRead(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(_ context.Context, st *store.Store) error {
		id, err := resolveID(st.Recommendations(), args[0])
		if err != nil {
			return err
		}
		rec, _ := st.Get(id)
		printRecommendation(cmd.OutOrStdout(), rec)
		st.MarkRead(id)
		return nil
	})
}

func runDismiss(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(_ context.Context, st *store.Store) error {
		id, err := resolveID(st.Recommendations(), args[0])
		if err != nil {
			return err
		}
		st.Dismiss(id)
		fmt.Fprintf(cmd.OutOrStdout(), "Dismissed %s\n", id)
		return nil
	})
}

func runReadAll(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(_ context.Context, st *store.Store) error {
		n := st.MarkAllRead()
		fmt.Fprintf(cmd.OutOrStdout(), "%d marked as read\n", n)
		return nil
	})
}
