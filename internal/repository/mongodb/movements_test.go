package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/pastvra/pastvra/internal/domain/models"
)

func TestMovementFilter(t *testing.T) {
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	dest, cat := "Feria", "Novillos"

	assert.Equal(t, bson.M{"farm_id": "farm-1"}, movementFilter(models.MovementFilter{FarmID: "farm-1"}))

	got := movementFilter(models.MovementFilter{FarmID: "farm-1", From: &from, To: &to, Destination: &dest, Category: &cat})
	assert.Equal(t, bson.M{
		"farm_id":          "farm-1",
		"movement_date":    bson.M{"$gte": from, "$lte": to},
		"destination_name": "Feria",
		"category_name":    "Novillos",
	}, got)
}
