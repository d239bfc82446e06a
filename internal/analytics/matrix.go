package analytics

import (
	"time"

	"github.com/pastvra/pastvra/internal/domain/models"
)

const (
	matrixMonthDays = 30
	matrixYearDays  = 365
)

// MonthLabels are the column headers used by the monthly weighing report.
var MonthLabels = [12]string{"ENE", "FEB", "MAR", "ABR", "MAY", "JUN", "JUL", "AGO", "SEP", "OCT", "NOV", "DIC"}

// MonthlyCell is one month of one animal in the matrix.
type MonthlyCell struct {
	Month      time.Month `json:"month"`
	Weight     *float64   `json:"weight"`
	Gain       *float64   `json:"gain"`
	ADG        *float64   `json:"adg"`
	MeasuredOn *time.Time `json:"measured_on"`
}

// MonthlyRow is the yearly view of one animal.
type MonthlyRow struct {
	Animal              models.Animal   `json:"animal"`
	Cells               [12]MonthlyCell `json:"cells"`
	TotalAnnual         *float64        `json:"total_annual"`
	ADGAnnual           *float64        `json:"adg_annual"`
	PendingCurrentMonth bool            `json:"pending_current_month"`
}

// BuildMonthlyMatrix projects the farm roster and its weights for year into
// one row per animal. Each cell holds the latest measurement of the month,
// not an average. Gains assume fixed 30-day months and a 365-day year.
func BuildMonthlyMatrix(animals []models.Animal, weights []models.AnimalWeightRecord, year int, now time.Time) []MonthlyRow {
	byAnimal := make(map[string][]models.AnimalWeightRecord)
	for _, w := range weights {
		byAnimal[w.AnimalID] = append(byAnimal[w.AnimalID], w)
	}

	rows := make([]MonthlyRow, 0, len(animals))
	for _, animal := range animals {
		latest := latestPerMonth(byAnimal[animal.ID], year)

		row := MonthlyRow{Animal: animal}
		for i := 0; i < 12; i++ {
			cell := MonthlyCell{Month: time.Month(i + 1)}
			if current := latest[i]; current != nil {
				weight := current.WeightKg
				measuredOn := current.MeasuredOn
				cell.Weight = &weight
				cell.MeasuredOn = &measuredOn

				if i > 0 && latest[i-1] != nil {
					gain := weight - latest[i-1].WeightKg
					adg := gain / matrixMonthDays
					cell.Gain = &gain
					cell.ADG = &adg
				}
			}
			row.Cells[i] = cell
		}

		jan, dec := row.Cells[0].Weight, row.Cells[11].Weight
		if jan != nil && dec != nil {
			total := *dec - *jan
			adg := total / matrixYearDays
			row.TotalAnnual = &total
			row.ADGAnnual = &adg
		}

		if year == now.Year() {
			row.PendingCurrentMonth = row.Cells[now.Month()-1].Weight == nil
		}

		rows = append(rows, row)
	}

	return rows
}

// latestPerMonth indexes the most recent measurement of each month of year.
func latestPerMonth(weights []models.AnimalWeightRecord, year int) [12]*models.AnimalWeightRecord {
	var out [12]*models.AnimalWeightRecord
	for i := range weights {
		w := &weights[i]
		if w.MeasuredOn.Year() != year {
			continue
		}
		idx := int(w.MeasuredOn.Month()) - 1
		if out[idx] == nil || w.MeasuredOn.After(out[idx].MeasuredOn) {
			out[idx] = w
		}
	}
	return out
}

// DefaultMeasuredOnForMonth returns the last calendar day of the month, the
// date pre-filled when back-filling a matrix cell.
func DefaultMeasuredOnForMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}
