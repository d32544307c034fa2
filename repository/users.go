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

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

var ErrNotFound = errors.New("not found")

// opTimeout bounds a single MongoDB operation.
const opTimeout = 5 * time.Second

type User struct {
	ID         int64     `bson:"_id"`
	Banned     bool      `bson:"banned"`
	JoinedDate time.Time `bson:"joined_date"`
}

type UserRepository struct {
	users *mongo.Collection
	log   *zap.Logger
}

func NewUserRepository(db *mongo.Database, log *zap.Logger) *UserRepository {
	return &UserRepository{users: db.Collection("users"), log: log.Named("users")}
}

// Add registers the user on first contact. Existing records are left
// untouched, so a ban survives the user talking to the bot again.
func (r *UserRepository) Add(ctx context.Context, userID int64) error {
	defer tracer.Trace("UserRepository::Add")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.users.UpdateByID(ctx, userID, bson.M{
		"$setOnInsert": bson.M{"banned": false, "joined_date": time.Now().UTC()},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("adding user %d: %w", userID, err)
	}
	return nil
}

func (r *UserRepository) ByID(ctx context.Context, userID int64) (*User, error) {
	defer tracer.Trace("UserRepository::ByID")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var user User
	err := r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching user %d: %w", userID, err)
	}
	return &user, nil
}

// IsPresent reports whether the user is known and not banned. Lookup
// failures read as absent.
func (r *UserRepository) IsPresent(ctx context.Context, userID int64) bool {
	defer tracer.Trace("UserRepository::IsPresent")()
	user, err := r.ByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		r.log.Error("presence lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return !user.Banned
}

func (r *UserRepository) All(ctx context.Context) ([]User, error) {
	defer tracer.Trace("UserRepository::All")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.users.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	return users, nil
}

// ActiveIDs returns every user ID that is not banned. This is the
// broadcast audience.
func (r *UserRepository) ActiveIDs(ctx context.Context) ([]int64, error) {
	defer tracer.Trace("UserRepository::ActiveIDs")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.users.Find(ctx,
		bson.M{"banned": bson.M{"$ne": true}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("listing active user IDs: %w", err)
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding active user IDs: %w", err)
	}
	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	defer tracer.Trace("UserRepository::Count")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	count, err := r.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *UserRepository) Ban(ctx context.Context, userID int64) error {
	defer tracer.Trace("UserRepository::Ban")()
	return r.setBanned(ctx, userID, true)
}

func (r *UserRepository) Unban(ctx context.Context, userID int64) error {
	defer tracer.Trace("UserRepository::Unban")()
	return r.setBanned(ctx, userID, false)
}

func (r *UserRepository) setBanned(ctx context.Context, userID int64, banned bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.users.UpdateByID(ctx, userID,
		bson.M{"$set": bson.M{"banned": banned}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("setting banned=%v for user %d: %w", banned, userID, err)
	}
	return nil
}

// Delete removes the user entirely. Broadcast uses it when Telegram
// reports the account blocked us or is gone.
func (r *UserRepository) Delete(ctx context.Context, userID int64) error {
	defer tracer.Trace("UserRepository::Delete")()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.users.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return fmt.Errorf("deleting user %d: %w", userID, err)
	}
	return nil
}
