package reporting

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/analytics"
)

// MatrixRange names the sheet range one farm-year matrix is written to.
func MatrixRange(farmID string, year int) string {
	return fmt.Sprintf("'%s %d'!A1:Q", farmID, year)
}

// ExportMonthlyMatrix rewrites the farm's matrix tab for year.
func (s *Service) ExportMonthlyMatrix(ctx context.Context, farmID string, year int) error {
	if s.sheet == nil {
		return ErrExportDisabled
	}

	rows, err := s.MonthlyMatrix(ctx, farmID, year)
	if err != nil {
		return err
	}

	sheetRange := MatrixRange(farmID, year)
	if err := s.sheet.ReplaceRange(ctx, sheetRange, matrixTable(rows)); err != nil {
		return fmt.Errorf("export matrix: %w", err)
	}

	s.logger.Info("monthly matrix exported",
		zap.String("farm_id", farmID),
		zap.Int("year", year),
		zap.Int("animals", len(rows)),
	)
	return nil
}

func matrixTable(rows []analytics.MonthlyRow) [][]interface{} {
	header := make([]interface{}, 0, 18)
	header = append(header, "ID", "ANIMAL")
	for _, label := range analytics.MonthLabels {
		header = append(header, label)
	}
	header = append(header, "TOTAL", "GDP", "PENDIENTE")

	table := make([][]interface{}, 0, len(rows)+1)
	table = append(table, header)
	for _, row := range rows {
		line := make([]interface{}, 0, len(header))
		line = append(line, row.Animal.ID, row.Animal.DisplayName())
		for _, cell := range row.Cells {
			line = append(line, formatFloat(cell.Weight, 1))
		}
		line = append(line, formatFloat(row.TotalAnnual, 1), formatFloat(row.ADGAnnual, 3), row.PendingCurrentMonth)
		table = append(table, line)
	}
	return table
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
