package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/climate-alerts/internal/app"
	"github.com/nhle/climate-alerts/internal/credential"
	"github.com/nhle/climate-alerts/internal/logging"
	"github.com/nhle/climate-alerts/internal/model"
	settingsview "github.com/nhle/climate-alerts/internal/ui/config"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Open the interactive dashboard",
	Long: "Open the terminal dashboard. Sources are polled in the background and\n" +
		"the recommendation list updates as new advice is generated.",
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg.Logging, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx := cmd.Context()
	svc, err := openServices(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.watchCrops(ctx); err != nil {
		logging.New("crops").Warn("crop registry watch disabled", "error", err)
	}

	m := app.New(app.Deps{
		Store:  svc.store,
		Poller: svc.poller,
		Crops:  svc.crops,
		Alerts: svc.alerts,
		Clock:  svc.clock,
		Logger: logging.New("app"),
		Settings: settingsview.Deps{
			Config:      cfg,
			Path:        rootFlags.configPath,
			Credentials: credential.NewStore(),
			CredKey:     credential.WeatherAPIKey,
			Save:        model.SaveConfig,
			Probe:       probeWeather,
		},
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
