package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/repository"
)

const (
	farmsCollection     = "farms"
	animalsCollection   = "animals"
	weightsCollection   = "animal_weights"
	movementsCollection = "inventory_movements"
)

// MongoDBRepository implements repository.Store for MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ repository.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository connects, verifies the connection and ensures the
// indexes the store contract relies on.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri).SetRegistry(newRegistry())
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger.Named("repo.mongodb"),
	}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		weightsCollection: {
			{
				Keys:    bson.D{{Key: "farm_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_farm_idempotency_key"),
			},
			{
				Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "animal_id", Value: 1}, {Key: "measured_on", Value: 1}, {Key: "created_at", Value: 1}},
			},
		},
		animalsCollection: {
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "chip_id", Value: 1}}},
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "ear_tag", Value: 1}}},
		},
		movementsCollection: {
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "movement_date", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for coll, idx := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// Ping verifies the server is reachable.
func (r *MongoDBRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
