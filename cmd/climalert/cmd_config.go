package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/climate-alerts/internal/model"
)

var configInitFlags struct {
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitFlags.force, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := rootFlags.configPath
	if _, err := os.Stat(path); err == nil && !configInitFlags.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if err := model.SaveConfig(path, model.DefaultAppConfig()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "config:   %s\n", rootFlags.configPath)
	fmt.Fprintf(w, "store:    %s %s (key %s)\n", cfg.Store.Driver, cfg.Store.Path, cfg.Store.Key)
	fmt.Fprintf(w, "crops:    %s (watch %t)\n", cfg.Crops.Path, cfg.Crops.Watch)
	fmt.Fprintf(w, "alerts:   every %ds (seed %d)\n", cfg.Alerts.PollIntervalSec, cfg.Alerts.Seed)
	fmt.Fprintf(w, "weather:  %s every %ds at %s (%.4f, %.4f)\n",
		cfg.Weather.Provider, cfg.Weather.PollIntervalSec, cfg.Weather.Location, cfg.Weather.Latitude, cfg.Weather.Longitude)
	fmt.Fprintf(w, "engine:   min interval %ds\n", cfg.Engine.MinIntervalSec)
	fmt.Fprintf(w, "logging:  %s %s -> %s\n", cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	return nil
}
