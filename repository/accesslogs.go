package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// AccessLog records one hit on the web redirector.
type AccessLog struct {
	FileID    int64     `bson:"file_id"`
	IP        string    `bson:"ip"`
	UserAgent string    `bson:"user_agent"`
	Timestamp time.Time `bson:"access_timestamp"`
	FileName  string    `bson:"file_name,omitempty"`
}

type AccessLogRepository struct {
	logs *mongo.Collection
	log  *zap.Logger
}

func NewAccessLogRepository(db *mongo.Database, log *zap.Logger) *AccessLogRepository {
	return &AccessLogRepository{logs: db.Collection("access_logs"), log: log.Named("access-logs")}
}

// EnsureIndexes backs the newest-first listing and the per-file
// filter. Safe to call on every start.
func (r *AccessLogRepository) EnsureIndexes(ctx context.Context) error {
	defer tracer.Trace("AccessLogRepository::EnsureIndexes")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.logs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "file_id", Value: 1}}},
		{Keys: bson.D{{Key: "access_timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating access log indexes: %w", err)
	}
	return nil
}

func (r *AccessLogRepository) Insert(ctx context.Context, fileID int64, ip, userAgent string) error {
	defer tracer.Trace("AccessLogRepository::Insert")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.logs.InsertOne(ctx, bson.M{
		"file_id":          fileID,
		"ip":               ip,
		"user_agent":       userAgent,
		"access_timestamp": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("logging access to file %d: %w", fileID, err)
	}
	return nil
}

// Recent lists the latest redirector hits, newest first, with file
// names joined in. Hits on files that have since left the index keep
// an empty name.
func (r *AccessLogRepository) Recent(ctx context.Context, limit int64) ([]AccessLog, error) {
	defer tracer.Trace("AccessLogRepository::Recent")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.logs.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$sort", Value: bson.M{"access_timestamp": -1}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "file_index",
			"localField":   "file_id",
			"foreignField": "_id",
			"as":           "file_details",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$file_details",
			"preserveNullAndEmptyArrays": true,
		}}},
		{{Key: "$project", Value: bson.M{
			"file_id":          1,
			"ip":               1,
			"user_agent":       1,
			"access_timestamp": 1,
			"file_name":        "$file_details.file_name",
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("listing recent accesses: %w", err)
	}
	var logs []AccessLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decoding recent accesses: %w", err)
	}
	return logs, nil
}
