package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// Group is a chat the owner has approved for group search.
type Group struct {
	ID         int64     `bson:"_id"`
	Name       string    `bson:"name"`
	ApprovedOn time.Time `bson:"approved_on"`
}

type GroupRepository struct {
	groups *mongo.Collection
	log    *zap.Logger
}

func NewGroupRepository(db *mongo.Database, log *zap.Logger) *GroupRepository {
	return &GroupRepository{groups: db.Collection("groups"), log: log.Named("groups")}
}

func (r *GroupRepository) Approve(ctx context.Context, groupID int64, name string) error {
	defer tracer.Trace("GroupRepository::Approve")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.groups.UpdateByID(ctx, groupID, bson.M{
		"$set": bson.M{"name": name, "approved_on": time.Now().UTC()},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("approving group %d: %w", groupID, err)
	}
	return nil
}

func (r *GroupRepository) Remove(ctx context.Context, groupID int64) error {
	defer tracer.Trace("GroupRepository::Remove")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.groups.DeleteOne(ctx, bson.M{"_id": groupID}); err != nil {
		return fmt.Errorf("removing group %d: %w", groupID, err)
	}
	return nil
}

func (r *GroupRepository) All(ctx context.Context) ([]Group, error) {
	defer tracer.Trace("GroupRepository::All")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.groups.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing approved groups: %w", err)
	}
	var groups []Group
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decoding approved groups: %w", err)
	}
	return groups, nil
}
