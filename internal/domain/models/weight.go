package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date wire format used across the API and stores.
const DateLayout = "2006-01-02"

// Weight record sources.
const (
	SourceOnline      = "online"
	SourceOfflineSync = "offline_sync"
	SourceAPI         = "api"
)

// WeightPoint is a single measurement in an animal's weight history.
type WeightPoint struct {
	MeasuredOn time.Time `json:"measured_on"`
	WeightKg   float64   `json:"weight_kg"`
}

// AnimalWeightRecord is the authoritative, append-only weight measurement.
type AnimalWeightRecord struct {
	ID             string    `bson:"_id" json:"id"`
	FarmID         string    `bson:"farm_id" json:"farm_id" validate:"required"`
	AnimalID       string    `bson:"animal_id" json:"animal_id" validate:"required"`
	MeasuredOn     time.Time `bson:"measured_on" json:"measured_on" validate:"required"`
	WeightKg       float64   `bson:"weight_kg" json:"weight_kg" validate:"gt=0"`
	IdempotencyKey string    `bson:"idempotency_key" json:"idempotency_key" validate:"required"`
	Source         string    `bson:"source" json:"source"`
	CreatedBy      string    `bson:"created_by" json:"created_by"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// Point projects the record onto the analytics value type.
func (r AnimalWeightRecord) Point() WeightPoint {
	return WeightPoint{MeasuredOn: r.MeasuredOn, WeightKg: r.WeightKg}
}

// PendingWeightRecord is a capture waiting in the device-local queue.
type PendingWeightRecord struct {
	IdempotencyKey string    `json:"idempotency_key" validate:"required"`
	FarmID         string    `json:"farm_id" validate:"required"`
	AnimalID       string    `json:"animal_id" validate:"required"`
	MeasuredOn     time.Time `json:"measured_on" validate:"required"`
	WeightKg       float64   `json:"weight_kg" validate:"gt=0"`
	QueuedAt       time.Time `json:"queued_at"`
}

// Points converts a slice of records into analytics points, preserving order.
func Points(records []AnimalWeightRecord) []WeightPoint {
	points := make([]WeightPoint, 0, len(records))
	for _, r := range records {
		points = append(points, r.Point())
	}
	return points
}

// DateOnly truncates t to its calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string, accepting longer timestamps by
// keeping only the date part.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(value) > len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	return time.Parse(DateLayout, value)
}
