// Package analytics derives zootechnical metrics from weight histories.
//
// Every function expects points sorted by MeasuredOn ascending. Unsorted input
// is a caller bug and is not detected.
package analytics

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/pastvra/pastvra/internal/domain/models"
)

const (
	// DefaultLookback is the number of trailing points used by ProjectThirtyDays.
	DefaultLookback = 5
	projectionDays  = 30
	monthKeyLayout  = "2006-01"
)

// Tag is an alert derived from two consecutive measurements.
type Tag string

const (
	TagWeightLoss Tag = "weight_loss"
	TagLowGain    Tag = "low_gain"
	TagOverdue    Tag = "overdue"
)

// TagSet is an unordered set of alert tags.
type TagSet map[Tag]struct{}

// Has reports whether t is in the set.
func (s TagSet) Has(t Tag) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the tags in a stable order for display and serialization.
func (s TagSet) Sorted() []Tag {
	out := make([]Tag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// MonthlyAverage is the mean weight of all points within a calendar month.
type MonthlyAverage struct {
	Month string  `json:"month"`
	Avg   float64 `json:"avg"`
}

// Projection is the 30-day linear trend estimate.
type Projection struct {
	Slope           float64 `json:"slope"`
	ProjectedWeight float64 `json:"projected_weight"`
}

// DaysBetween returns the calendar-day difference b - a.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(models.DateOnly(b).Sub(models.DateOnly(a)).Hours() / 24))
}

// AverageDailyGain returns kg/day between previous and current, or nil when
// there is no baseline. Same-day or inverted pairs use a one-day divisor.
func AverageDailyGain(previous *models.WeightPoint, current models.WeightPoint) *float64 {
	if previous == nil {
		return nil
	}
	days := DaysBetween(previous.MeasuredOn, current.MeasuredOn)
	if days < 1 {
		days = 1
	}
	adg := (current.WeightKg - previous.WeightKg) / float64(days)
	return &adg
}

// MonthlyAverages groups points by year-month. Groups are returned in
// first-seen order, which is chronological only for sorted input.
func MonthlyAverages(points []models.WeightPoint) []MonthlyAverage {
	type bucket struct {
		sum   float64
		count int
	}

	order := make([]string, 0)
	buckets := make(map[string]*bucket)
	for _, p := range points {
		key := p.MeasuredOn.Format(monthKeyLayout)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.sum += p.WeightKg
		b.count++
	}

	out := make([]MonthlyAverage, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out = append(out, MonthlyAverage{Month: key, Avg: b.sum / float64(b.count)})
	}
	return out
}

// ProjectThirtyDays fits an ordinary least-squares line over the last
// lookback points and evaluates it 30 days after the last one. It returns nil
// with fewer than two points or when every point in the window shares a date.
func ProjectThirtyDays(points []models.WeightPoint, lookback int) *Projection {
	if len(points) < 2 {
		return nil
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	window := points
	if len(window) > lookback {
		window = window[len(window)-lookback:]
	}

	base := window[0].MeasuredOn
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range window {
		x := float64(DaysBetween(base, p.MeasuredOn))
		sumX += x
		sumY += p.WeightKg
		sumXY += x * p.WeightKg
		sumXX += x * x
	}

	n := float64(len(window))
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	lastX := float64(DaysBetween(base, window[len(window)-1].MeasuredOn))

	return &Projection{
		Slope:           slope,
		ProjectedWeight: intercept + slope*(lastX+projectionDays),
	}
}

// DeriveTags evaluates the alert rules for current against its immediately
// preceding measurement. previous is nil for an animal's first measurement.
func DeriveTags(previous *models.WeightPoint, current models.WeightPoint, lowGainThreshold float64, overdueDays int) TagSet {
	tags := make(TagSet)
	if previous == nil {
		return tags
	}

	if current.WeightKg < previous.WeightKg {
		tags[TagWeightLoss] = struct{}{}
	}
	if adg := AverageDailyGain(previous, current); adg != nil && *adg < lowGainThreshold {
		tags[TagLowGain] = struct{}{}
	}
	if DaysBetween(previous.MeasuredOn, current.MeasuredOn) > overdueDays {
		tags[TagOverdue] = struct{}{}
	}
	return tags
}
