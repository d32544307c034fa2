package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// SettingsRepository is a small key/value store for operational state
// that should survive restarts, like the cached force-subscribe invite
// link.
type SettingsRepository struct {
	settings *mongo.Collection
	log      *zap.Logger
}

func NewSettingsRepository(db *mongo.Database, log *zap.Logger) *SettingsRepository {
	return &SettingsRepository{settings: db.Collection("settings"), log: log.Named("settings")}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	defer tracer.Trace("SettingsRepository::Get")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var doc struct {
		Value string `bson:"value"`
	}
	err := r.settings.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fetching setting %q: %w", key, err)
	}
	return doc.Value, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	defer tracer.Trace("SettingsRepository::Set")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.settings.UpdateByID(ctx, key,
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}
