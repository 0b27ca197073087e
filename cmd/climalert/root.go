// climalert keeps farmers' climate advice in sync with their crops, the
// regional alert feed and the weather.
//
// Usage:
//
//	climalert dashboard
//	climalert sync
//	climalert list [--unread] [--priority] [--type=alerta]
//	climalert read <id> | dismiss <id> | read-all
//	climalert status
//	climalert alerts [--all] [--type=helada] [--sort=severity] [--share=<id>]
//	climalert crops add|list|stats
//	climalert config init
//	climalert credential set-weather-key
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/climate-alerts/internal/model"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "climalert",
	Short: "Climate alert recommendations for Huancavelica farmers",
	Long: "climalert turns the registered crops, the regional climate alerts and the\n" +
		"current weather into prioritised, deduplicated farming advice.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", model.DefaultConfigPath(), "Config file path")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Override logging.level (debug|info|warn|error)")

	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(readAllCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(cropsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(credentialCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
