package repository

import (
	"context"
	"errors"
	"fmt"

	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// File is one indexed message of the storage channel. The document ID
// is the channel message ID, which is all a deep link needs to deliver
// the file again.
type File struct {
	ID           int64     `bson:"_id"`
	FileUniqueID string    `bson:"file_unique_id"`
	FileName     string    `bson:"file_name"`
	FileSize     int64     `bson:"file_size"`
	DateAdded    time.Time `bson:"date_added"`
	Duration     int       `bson:"duration"`
	Caption      string    `bson:"caption,omitempty"`
	ViewCount    int64     `bson:"view_count,omitempty"`
}

// IndexStatus tells an uploader what happened to their file.
type IndexStatus string

const (
	IndexedNew       IndexStatus = "new"
	IndexedDuplicate IndexStatus = "duplicate"
)

type FileRepository struct {
	files *mongo.Collection
	log   *zap.Logger
}

func NewFileRepository(db *mongo.Database, log *zap.Logger) *FileRepository {
	return &FileRepository{files: db.Collection("file_index"), log: log.Named("files")}
}

// EnsureIndexes creates the search and dedup indexes. Safe to call on
// every start.
func (r *FileRepository) EnsureIndexes(ctx context.Context) error {
	defer tracer.Trace("FileRepository::EnsureIndexes")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.files.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "file_name", Value: "text"}},
			Options: options.Index().
				SetName("file_name_text").
				SetDefaultLanguage("english"),
		},
		{
			Keys: bson.D{{Key: "file_unique_id", Value: 1}},
			Options: options.Index().
				SetName("file_unique_id_index").
				SetUnique(true).
				SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "view_count", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("creating file_index indexes: %w", err)
	}
	return nil
}

// Add indexes a message freshly copied into the storage channel.
// Files already known by their Telegram unique ID are not re-indexed.
func (r *FileRepository) Add(ctx context.Context, msg *tele.Message) (IndexStatus, error) {
	defer tracer.Trace("FileRepository::Add")()
	media, ok := summarizeMedia(msg)
	if !ok {
		return "", fmt.Errorf("message %d carries no indexable media", msg.ID)
	}

	if _, err := r.ByUniqueID(ctx, media.uniqueID); err == nil {
		return IndexedDuplicate, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.files.InsertOne(ctx, File{
		ID:           int64(msg.ID),
		FileUniqueID: media.uniqueID,
		FileName:     media.name,
		FileSize:     media.size,
		DateAdded:    msg.Time(),
		Duration:     media.duration,
		Caption:      msg.Caption,
	})
	if mongo.IsDuplicateKeyError(err) {
		return IndexedDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("indexing file %d: %w", msg.ID, err)
	}
	return IndexedNew, nil
}

func (r *FileRepository) ByID(ctx context.Context, messageID int64) (*File, error) {
	defer tracer.Trace("FileRepository::ByID")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var file File
	err := r.files.FindOne(ctx, bson.M{"_id": messageID}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching file %d: %w", messageID, err)
	}
	return &file, nil
}

func (r *FileRepository) ByUniqueID(ctx context.Context, uniqueID string) (*File, error) {
	defer tracer.Trace("FileRepository::ByUniqueID")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var file File
	err := r.files.FindOne(ctx, bson.M{"file_unique_id": uniqueID}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching file by unique ID: %w", err)
	}
	return &file, nil
}

// Search runs a text search over file names, best match first.
func (r *FileRepository) Search(ctx context.Context, query string, limit int64) ([]File, error) {
	defer tracer.Trace("FileRepository::Search")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.files.Find(ctx,
		bson.M{"$text": bson.M{"$search": query}},
		options.Find().
			SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
			SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("searching files for %q: %w", query, err)
	}
	var files []File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("decoding search results: %w", err)
	}
	return files, nil
}

// TotalStats returns how many files are indexed and their combined size.
func (r *FileRepository) TotalStats(ctx context.Context) (count int64, size int64, err error) {
	defer tracer.Trace("FileRepository::TotalStats")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.files.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":         nil,
			"total_files": bson.M{"$sum": 1},
			"total_size":  bson.M{"$sum": "$file_size"},
		}}},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("aggregating file stats: %w", err)
	}
	var results []struct {
		TotalFiles int64 `bson:"total_files"`
		TotalSize  int64 `bson:"total_size"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, 0, fmt.Errorf("decoding file stats: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, nil
	}
	return results[0].TotalFiles, results[0].TotalSize, nil
}

// IncrementViews bumps the web redirect counter for a file.
func (r *FileRepository) IncrementViews(ctx context.Context, messageID int64) error {
	defer tracer.Trace("FileRepository::IncrementViews")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.files.UpdateByID(ctx, messageID, bson.M{"$inc": bson.M{"view_count": 1}}); err != nil {
		return fmt.Errorf("incrementing views for file %d: %w", messageID, err)
	}
	return nil
}

// TopViewed lists files ordered by web views, most viewed first.
func (r *FileRepository) TopViewed(ctx context.Context, limit int64) ([]File, error) {
	defer tracer.Trace("FileRepository::TopViewed")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.files.Find(ctx,
		bson.M{"view_count": bson.M{"$gt": 0}},
		options.Find().
			SetSort(bson.D{{Key: "view_count", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing top viewed files: %w", err)
	}
	var files []File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("decoding top viewed files: %w", err)
	}
	return files, nil
}

type mediaSummary struct {
	uniqueID string
	name     string
	size     int64
	duration int
}

// summarizeMedia pulls the indexable attributes out of an attachment.
// Only documents, videos, photos and audio are stored; photos have no
// name of their own.
func summarizeMedia(m *tele.Message) (mediaSummary, bool) {
	switch {
	case m == nil:
		return mediaSummary{}, false
	case m.Document != nil:
		return mediaSummary{m.Document.UniqueID, m.Document.FileName, m.Document.FileSize, 0}, true
	case m.Video != nil:
		return mediaSummary{m.Video.UniqueID, m.Video.FileName, m.Video.FileSize, m.Video.Duration}, true
	case m.Photo != nil:
		return mediaSummary{m.Photo.UniqueID, "Photo", m.Photo.FileSize, 0}, true
	case m.Audio != nil:
		return mediaSummary{m.Audio.UniqueID, m.Audio.FileName, m.Audio.FileSize, m.Audio.Duration}, true
	}
	return mediaSummary{}, false
}
