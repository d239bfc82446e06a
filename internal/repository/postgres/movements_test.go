package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pastvra/pastvra/internal/domain/models"
)

func TestMovementWhere(t *testing.T) {
	where, args := movementWhere(models.MovementFilter{FarmID: "farm-1"})
	assert.Equal(t, "farm_id = $1", where)
	assert.Equal(t, []any{"farm-1"}, args)

	from := time.Date(2025, time.February, 1, 13, 0, 0, 0, time.UTC)
	cat := "Vacas"
	where, args = movementWhere(models.MovementFilter{FarmID: "farm-1", From: &from, Category: &cat})
	assert.Equal(t, "farm_id = $1 AND movement_date >= $2 AND category_name = $3", where)
	assert.Equal(t, []any{"farm-1", time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), "Vacas"}, args)
}
