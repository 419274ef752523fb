// Package store provides persistence for region configurations.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/edurecord/student-records-compliance/types"
)

const regionConfigCollection = "region_configs"

// MongoDBStore persists region configurations in MongoDB. The registry
// itself stays immutable; this store only feeds construction and
// operator-driven config updates.
type MongoDBStore struct {
	db *mongo.Database
}

// NewMongoDBStore creates a new MongoDB region config store.
func NewMongoDBStore(db *mongo.Database) *MongoDBStore {
	return &MongoDBStore{db: db}
}

// Load fetches every region configuration. The result is handed to
// registry.New at startup.
func (s *MongoDBStore) Load(ctx context.Context) ([]types.RegionConfig, error) {
	cursor, err := s.db.Collection(regionConfigCollection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query region configs: %w", err)
	}
	defer cursor.Close(ctx)

	var configs []types.RegionConfig
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, fmt.Errorf("failed to decode region configs: %w", err)
	}

	log.Debug().Int("regions", len(configs)).Msg("Loaded region configurations from MongoDB")
	return configs, nil
}

// Get fetches a single region configuration.
func (s *MongoDBStore) Get(ctx context.Context, region string) (*types.RegionConfig, error) {
	var cfg types.RegionConfig
	err := s.db.Collection(regionConfigCollection).
		FindOne(ctx, bson.M{"_id": region}).
		Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, &types.RegionNotSupportedError{Region: region}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch region config for %q: %w", region, err)
	}
	return &cfg, nil
}

// Put upserts a region configuration. Takes effect on the next registry
// construction; running engines keep their immutable snapshot.
func (s *MongoDBStore) Put(ctx context.Context, cfg types.RegionConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("region config must have a region ID")
	}

	_, err := s.db.Collection(regionConfigCollection).ReplaceOne(
		ctx,
		bson.M{"_id": cfg.ID},
		cfg,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to store region config for %q: %w", cfg.ID, err)
	}

	log.Info().Str("region", cfg.ID).Msg("Stored region configuration")
	return nil
}
