package model

import "time"

// CropTypePotato is the crop type that receives the hilling advisory.
const CropTypePotato = "papa"

// Crop is a tracked field as reported by the crop registry.
type Crop struct {
	// ID is the registry identifier for this crop.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is the farmer-facing label (e.g., "Papa Norte").
	Name string `json:"name" yaml:"name" validate:"required"`

	// Type is the crop species key (e.g., "papa", "maiz", "quinua").
	Type string `json:"type" yaml:"type" validate:"required"`

	// Location is the free-text place name of the field.
	Location string `json:"location" yaml:"location"`

	// PlantingDate is when the crop was sown. Zero means unknown.
	PlantingDate time.Time `json:"planting_date" yaml:"planting_date"`
}

const day = 24 * time.Hour

// DaysSincePlanting returns whole days elapsed from PlantingDate to now,
// rounded down, so a planting date later today or in the future gives a
// negative count. The second return value is false when the planting date
// is unknown.
func (c Crop) DaysSincePlanting(now time.Time) (int, bool) {
	if c.PlantingDate.IsZero() {
		return 0, false
	}
	d := now.Sub(c.PlantingDate)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days, true
}
