package models

import "time"

// Farm carries the per-farm thresholds used by the alert tagging rules.
type Farm struct {
	ID                  string   `bson:"_id" json:"id"`
	Name                string   `bson:"name" json:"name"`
	Hectares            *float64 `bson:"hectares,omitempty" json:"hectares,omitempty"`
	LowGainThresholdADG float64  `bson:"low_gain_threshold_adg" json:"low_gain_threshold_adg"`
	OverdueDays         int      `bson:"overdue_days" json:"overdue_days"`
}

// AnimalStatus enumerates the lifecycle states of an animal.
type AnimalStatus string

const (
	AnimalAlive   AnimalStatus = "vivo"
	AnimalSold    AnimalStatus = "vendido"
	AnimalDead    AnimalStatus = "muerto"
	AnimalMissing AnimalStatus = "extraviado"
)

// Animal is the roster entry consumed by lookups and the monthly matrix.
type Animal struct {
	ID        string       `bson:"_id" json:"id"`
	FarmID    string       `bson:"farm_id" json:"farm_id"`
	ChipID    string       `bson:"chip_id,omitempty" json:"chip_id,omitempty"`
	EarTag    string       `bson:"ear_tag,omitempty" json:"ear_tag,omitempty"`
	Name      string       `bson:"name,omitempty" json:"name,omitempty"`
	PhotoPath string       `bson:"photo_path,omitempty" json:"photo_path,omitempty"`
	Status    AnimalStatus `bson:"status" json:"status"`
}

// DisplayName returns the best human label available for the animal.
func (a Animal) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.EarTag != "":
		return a.EarTag
	default:
		return a.ChipID
	}
}

// AnimalSummaryCache is the denormalized snapshot kept on the capture device.
// It is the only source of animal data while offline.
type AnimalSummaryCache struct {
	AnimalID       string     `json:"animal_id"`
	FarmID         string     `json:"farm_id"`
	ChipID         string     `json:"chip_id,omitempty"`
	EarTag         string     `json:"ear_tag,omitempty"`
	DisplayName    string     `json:"display_name,omitempty"`
	PhotoPath      string     `json:"photo_path,omitempty"`
	LastWeightKg   *float64   `json:"last_weight_kg,omitempty"`
	LastMeasuredOn *time.Time `json:"last_measured_on,omitempty"`
}

// LastPoint returns the cached most recent measurement, if any.
func (c AnimalSummaryCache) LastPoint() *WeightPoint {
	if c.LastWeightKg == nil || c.LastMeasuredOn == nil {
		return nil
	}
	return &WeightPoint{MeasuredOn: *c.LastMeasuredOn, WeightKg: *c.LastWeightKg}
}
