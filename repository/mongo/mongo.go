package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

const dialTimeout = 30 * time.Second

// Dial opens a client, verifies the deployment is reachable and hands
// back the named database together with a disconnect func.
func Dial(ctx context.Context, uri, name string, log *zap.Logger) (*mongo.Database, func(context.Context) error, error) {
	ctx, span := tracer.Open(ctx, tracer.Named("mongoDial"))
	defer span.Close()
	defer log.Info("Finished opening MongoDB connection")
	log.Info("Opening MongoDB connection", zap.String("database", name))

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongoDial: %w", err)
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		return nil, nil, fmt.Errorf("mongoDial ping: %w", err)
	}
	return client.Database(name), client.Disconnect, nil
}
