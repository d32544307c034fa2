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

// TopFile is one row of the most-downloaded ranking.
type TopFile struct {
	FileID   int64  `bson:"_id"`
	Count    int64  `bson:"count"`
	FileName string `bson:"file_name"`
}

// UserDownload is one entry of a user's download history.
type UserDownload struct {
	FileName  string    `bson:"file_name"`
	Timestamp time.Time `bson:"timestamp"`
}

// AnalyticsRepository keeps the append-only download log and answers
// the dashboard's aggregation queries.
type AnalyticsRepository struct {
	db        *mongo.Database
	downloads *mongo.Collection
	log       *zap.Logger
}

func NewAnalyticsRepository(db *mongo.Database, log *zap.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		db:        db,
		downloads: db.Collection("analytics"),
		log:       log.Named("analytics"),
	}
}

// EnsureIndexes backs the timestamp windows and the per-user history
// lookups. Safe to call on every start.
func (r *AnalyticsRepository) EnsureIndexes(ctx context.Context) error {
	defer tracer.Trace("AnalyticsRepository::EnsureIndexes")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.downloads.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating analytics indexes: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) LogDownload(ctx context.Context, fileID, userID int64) error {
	defer tracer.Trace("AnalyticsRepository::LogDownload")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.downloads.InsertOne(ctx, bson.M{
		"file_id":   fileID,
		"user_id":   userID,
		"timestamp": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("logging download of file %d: %w", fileID, err)
	}
	return nil
}

// DailyCounts returns download totals for today, yesterday and the day
// before, bounded at UTC midnights.
func (r *AnalyticsRepository) DailyCounts(ctx context.Context) (today, yesterday, dayBefore int64, err error) {
	defer tracer.Trace("AnalyticsRepository::DailyCounts")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	dayBeforeStart := todayStart.AddDate(0, 0, -2)

	window := func(from, to time.Time) bson.A {
		match := bson.M{"$gte": from}
		if !to.IsZero() {
			match["$lt"] = to
		}
		return bson.A{
			bson.M{"$match": bson.M{"timestamp": match}},
			bson.M{"$count": "count"},
		}
	}

	cursor, err := r.downloads.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"today":      window(todayStart, time.Time{}),
			"yesterday":  window(yesterdayStart, todayStart),
			"day_before": window(dayBeforeStart, yesterdayStart),
		}}},
	})
	if err != nil {
		return 0, 0, 0, fmt.Errorf("aggregating daily counts: %w", err)
	}

	var results []struct {
		Today     []countDoc `bson:"today"`
		Yesterday []countDoc `bson:"yesterday"`
		DayBefore []countDoc `bson:"day_before"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, 0, 0, fmt.Errorf("decoding daily counts: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, 0, nil
	}
	return firstCount(results[0].Today), firstCount(results[0].Yesterday), firstCount(results[0].DayBefore), nil
}

type countDoc struct {
	Count int64 `bson:"count"`
}

func firstCount(docs []countDoc) int64 {
	if len(docs) == 0 {
		return 0
	}
	return docs[0].Count
}

// TopFiles ranks the five most downloaded files within the last N days.
// days <= 0 means all time.
func (r *AnalyticsRepository) TopFiles(ctx context.Context, days int) ([]TopFile, error) {
	defer tracer.Trace("AnalyticsRepository::TopFiles")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	match := bson.M{}
	if days > 0 {
		match["timestamp"] = bson.M{"$gte": time.Now().UTC().AddDate(0, 0, -days)}
	}
	cursor, err := r.downloads.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$file_id", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
		{{Key: "$limit", Value: 5}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "file_index",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "file_details",
		}}},
		{{Key: "$unwind", Value: "$file_details"}},
		{{Key: "$project", Value: bson.M{"count": 1, "file_name": "$file_details.file_name"}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating top files: %w", err)
	}
	var top []TopFile
	if err := cursor.All(ctx, &top); err != nil {
		return nil, fmt.Errorf("decoding top files: %w", err)
	}
	return top, nil
}

func (r *AnalyticsRepository) UserDownloadCount(ctx context.Context, userID int64) (int64, error) {
	defer tracer.Trace("AnalyticsRepository::UserDownloadCount")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	count, err := r.downloads.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("counting downloads of user %d: %w", userID, err)
	}
	return count, nil
}

// UserLastDownloads lists the user's most recent downloads, newest
// first, with file names joined in from the index.
func (r *AnalyticsRepository) UserLastDownloads(ctx context.Context, userID int64, limit int) ([]UserDownload, error) {
	defer tracer.Trace("AnalyticsRepository::UserLastDownloads")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.downloads.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$sort", Value: bson.M{"timestamp": -1}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "file_index",
			"localField":   "file_id",
			"foreignField": "_id",
			"as":           "file_details",
		}}},
		{{Key: "$unwind", Value: "$file_details"}},
		{{Key: "$project", Value: bson.M{"file_name": "$file_details.file_name", "timestamp": 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating last downloads of user %d: %w", userID, err)
	}
	var downloads []UserDownload
	if err := cursor.All(ctx, &downloads); err != nil {
		return nil, fmt.Errorf("decoding last downloads: %w", err)
	}
	return downloads, nil
}

// DBStats reports the deployment's storage and data sizes in bytes.
func (r *AnalyticsRepository) DBStats(ctx context.Context) (storageSize, dataSize int64, err error) {
	defer tracer.Trace("AnalyticsRepository::DBStats")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var stats struct {
		StorageSize float64 `bson:"storageSize"`
		DataSize    float64 `bson:"dataSize"`
	}
	if err := r.db.RunCommand(ctx, bson.M{"dbStats": 1}).Decode(&stats); err != nil {
		return 0, 0, fmt.Errorf("running dbStats: %w", err)
	}
	return int64(stats.StorageSize), int64(stats.DataSize), nil
}
