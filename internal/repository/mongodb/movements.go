package mongodb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pastvra/pastvra/internal/domain/models"
)

func (r *MongoDBRepository) InsertMovement(ctx context.Context, rec models.InventoryMovementRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, err := r.db.Collection(movementsCollection).InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert inventory movement: %w", err)
	}
	return nil
}

func (r *MongoDBRepository) ListMovements(ctx context.Context, f models.MovementFilter) ([]models.InventoryMovementRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "movement_date", Value: 1}, {Key: "created_at", Value: 1}})
	cursor, err := r.db.Collection(movementsCollection).Find(ctx, movementFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory movements: %w", err)
	}

	out := make([]models.InventoryMovementRecord, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode inventory movements: %w", err)
	}
	return out, nil
}

// movementFilter translates the optional filter fields into a query. Date
// bounds are inclusive.
func movementFilter(f models.MovementFilter) bson.M {
	filter := bson.M{"farm_id": f.FarmID}

	dateRange := bson.M{}
	if f.From != nil {
		dateRange["$gte"] = *f.From
	}
	if f.To != nil {
		dateRange["$lte"] = *f.To
	}
	if len(dateRange) > 0 {
		filter["movement_date"] = dateRange
	}
	if f.Destination != nil {
		filter["destination_name"] = *f.Destination
	}
	if f.Category != nil {
		filter["category_name"] = *f.Category
	}
	return filter
}
