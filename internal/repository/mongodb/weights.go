package mongodb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/repository"
)

var weightOrder = bson.D{{Key: "measured_on", Value: 1}, {Key: "created_at", Value: 1}}

// InsertWeight stores a measurement. The unique index on
// (farm_id, idempotency_key) turns replays into models.ErrDuplicateWeight.
func (r *MongoDBRepository) InsertWeight(ctx context.Context, rec models.AnimalWeightRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.MeasuredOn = models.DateOnly(rec.MeasuredOn)

	_, err := r.db.Collection(weightsCollection).InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateWeight
	}
	if err != nil {
		return fmt.Errorf("failed to insert weight: %w", err)
	}
	return nil
}

// ListWeightsByAnimal returns an animal's history, oldest first.
func (r *MongoDBRepository) ListWeightsByAnimal(ctx context.Context, farmID, animalID string) ([]models.AnimalWeightRecord, error) {
	filter := bson.M{"farm_id": farmID, "animal_id": animalID}
	return r.findWeights(ctx, filter)
}

// ListWeightsByFarmYear returns every measurement of the farm dated within year.
func (r *MongoDBRepository) ListWeightsByFarmYear(ctx context.Context, farmID string, year int) ([]models.AnimalWeightRecord, error) {
	start, end := repository.YearBounds(year)
	filter := bson.M{
		"farm_id":     farmID,
		"measured_on": bson.M{"$gte": start, "$lt": end},
	}
	return r.findWeights(ctx, filter)
}

func (r *MongoDBRepository) findWeights(ctx context.Context, filter bson.M) ([]models.AnimalWeightRecord, error) {
	cursor, err := r.db.Collection(weightsCollection).Find(ctx, filter, options.Find().SetSort(weightOrder))
	if err != nil {
		return nil, fmt.Errorf("failed to query weights: %w", err)
	}

	out := make([]models.AnimalWeightRecord, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	return out, nil
}
