package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pastvra/pastvra/internal/domain/models"
)

func (r *MongoDBRepository) UpsertAnimal(ctx context.Context, animal models.Animal) error {
	if animal.Status == "" {
		animal.Status = models.AnimalAlive
	}
	_, err := r.db.Collection(animalsCollection).ReplaceOne(ctx,
		bson.M{"_id": animal.ID}, animal, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert animal %s: %w", animal.ID, err)
	}
	return nil
}

func (r *MongoDBRepository) ListAnimals(ctx context.Context, farmID string) ([]models.Animal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ear_tag", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.db.Collection(animalsCollection).Find(ctx, bson.M{"farm_id": farmID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query animals: %w", err)
	}

	out := make([]models.Animal, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode animals: %w", err)
	}
	return out, nil
}

func (r *MongoDBRepository) FindAnimalByIdentifier(ctx context.Context, farmID, term string) (*models.Animal, error) {
	if term == "" {
		return nil, models.ErrAnimalNotFound
	}
	filter := bson.M{
		"farm_id": farmID,
		"$or":     bson.A{bson.M{"chip_id": term}, bson.M{"ear_tag": term}},
	}

	var animal models.Animal
	err := r.db.Collection(animalsCollection).FindOne(ctx, filter).Decode(&animal)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrAnimalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find animal: %w", err)
	}
	return &animal, nil
}

func (r *MongoDBRepository) UpsertFarm(ctx context.Context, farm models.Farm) error {
	_, err := r.db.Collection(farmsCollection).ReplaceOne(ctx,
		bson.M{"_id": farm.ID}, farm, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert farm %s: %w", farm.ID, err)
	}
	return nil
}

func (r *MongoDBRepository) GetFarm(ctx context.Context, farmID string) (*models.Farm, error) {
	var farm models.Farm
	err := r.db.Collection(farmsCollection).FindOne(ctx, bson.M{"_id": farmID}).Decode(&farm)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrFarmNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load farm: %w", err)
	}
	return &farm, nil
}
