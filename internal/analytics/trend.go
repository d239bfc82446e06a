package analytics

import "github.com/pastvra/pastvra/internal/domain/models"

// TrendPoint annotates one measurement with its gain versus the previous one.
type TrendPoint struct {
	models.WeightPoint
	ADG  *float64 `json:"adg"`
	Tags TagSet   `json:"tags"`
}

// Trend is the full analytics view of a single animal.
type Trend struct {
	Points          []TrendPoint     `json:"points"`
	Projection      *Projection      `json:"projection"`
	MonthlyAverages []MonthlyAverage `json:"monthly_averages"`
	LatestADG       *float64         `json:"latest_adg"`
	LatestTags      TagSet           `json:"latest_tags"`
}

// AnimalTrend walks a sorted history, pairing each point with its predecessor.
func AnimalTrend(points []models.WeightPoint, farm models.Farm) Trend {
	trend := Trend{
		Points:          make([]TrendPoint, 0, len(points)),
		Projection:      ProjectThirtyDays(points, DefaultLookback),
		MonthlyAverages: MonthlyAverages(points),
		LatestTags:      make(TagSet),
	}

	var previous *models.WeightPoint
	for i := range points {
		current := points[i]
		tp := TrendPoint{
			WeightPoint: current,
			ADG:         AverageDailyGain(previous, current),
			Tags:        DeriveTags(previous, current, farm.LowGainThresholdADG, farm.OverdueDays),
		}
		trend.Points = append(trend.Points, tp)
		previous = &points[i]
	}

	if n := len(trend.Points); n > 0 {
		trend.LatestADG = trend.Points[n-1].ADG
		trend.LatestTags = trend.Points[n-1].Tags
	}
	return trend
}
