package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/climate-alerts/internal/logging"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/source/crops"
	"github.com/nhle/climate-alerts/internal/ui/cropform"
)

var cropAddFlags struct {
	name     string
	typ      string
	location string
	planted  string
}

var cropsCmd = &cobra.Command{
	Use:   "crops",
	Short: "Manage the crop registry",
}

var cropsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a crop",
	RunE:  runCropsAdd,
}

var cropsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered crops",
	RunE:    runCropsList,
}

var cropsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a crop from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runCropsRemove,
}

var cropsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count registered crops by type",
	RunE:  runCropsStats,
}

func init() {
	f := cropsAddCmd.Flags()
	f.StringVar(&cropAddFlags.name, "name", "", "Field name, e.g. \"Papa Norte\" (required)")
	f.StringVar(&cropAddFlags.typ, "type", "", "Crop type: papa, maiz, quinua, haba, cebada, olluco (required)")
	f.StringVar(&cropAddFlags.location, "location", "", "Field location")
	f.StringVar(&cropAddFlags.planted, "planted", "", "Planting date (YYYY-MM-DD)")
	_ = cropsAddCmd.MarkFlagRequired("name")
	_ = cropsAddCmd.MarkFlagRequired("type")

	cropsCmd.AddCommand(cropsAddCmd)
	cropsCmd.AddCommand(cropsListCmd)
	cropsCmd.AddCommand(cropsRemoveCmd)
	cropsCmd.AddCommand(cropsStatsCmd)
}

func openRegistry() (*crops.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	return crops.Open(cfg.Crops.Path, logging.New("crops"))
}

// newCrop builds a crop from command input. The planting date follows the
// same rules as the dashboard form.
func newCrop(name, typ, location, planted string, now func() time.Time) (model.Crop, error) {
	c := model.Crop{
		Name:     strings.TrimSpace(name),
		Type:     strings.ToLower(strings.TrimSpace(typ)),
		Location: strings.TrimSpace(location),
	}
	planted = strings.TrimSpace(planted)
	if planted == "" {
		return c, nil
	}
	if err := cropform.ValidatePlantingDate(now)(planted); err != nil {
		return model.Crop{}, fmt.Errorf("planting date: %w", err)
	}
	t, err := time.ParseInLocation(dateLayout, planted, time.Local)
	if err != nil {
		return model.Crop{}, fmt.Errorf("planting date: %w", err)
	}
	c.PlantingDate = t
	return c, nil
}

func runCropsAdd(cmd *cobra.Command, _ []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	c, err := newCrop(cropAddFlags.name, cropAddFlags.typ, cropAddFlags.location, cropAddFlags.planted, time.Now)
	if err != nil {
		return err
	}
	added, err := reg.Add(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) in %s\n", added.Name, added.ID, reg.Path())
	return nil
}

func runCropsList(cmd *cobra.Command, _ []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	list, err := reg.Crops(cmd.Context())
	if err != nil {
		return err
	}
	printCrops(cmd.OutOrStdout(), list, time.Now())
	return nil
}

func runCropsRemove(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	ok, err := reg.Remove(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no crop with id %q", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}

func runCropsStats(cmd *cobra.Command, _ []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	printCropStats(cmd.OutOrStdout(), reg.Stats())
	return nil
}
