package database

import (
	"context"
	"fmt"
	"time"

	"github.com/comment-moderation-api/internal/config"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo holds the client and the collections used by the document backend.
// Multi-document transactions require a replica set or sharded cluster.
type Mongo struct {
	Client   *mongo.Client
	Articles *mongo.Collection
	Comments *mongo.Collection
	log      zerolog.Logger
}

// NewMongo connects to MongoDB and verifies the connection
func NewMongo(cfg *config.DatabaseConfig, log zerolog.Logger) (*Mongo, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(cfg.MongoURI).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	m := &Mongo{
		Client:   client,
		Articles: db.Collection("articles"),
		Comments: db.Collection("comments"),
		log:      log.With().Str("component", "mongo").Logger(),
	}

	m.log.Info().Str("database", cfg.MongoDatabase).Msg("MongoDB connection established")
	return m, nil
}

// EnsureIndexes creates the indexes the listing and ranking queries rely on.
// It plays the role SQL migrations play for the Postgres backend.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.Comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "articleId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "articleId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create comment indexes: %w", err)
	}

	_, err = m.Articles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "commentCount", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create article indexes: %w", err)
	}

	m.log.Info().Msg("MongoDB indexes ensured")
	return nil
}

// HealthCheck pings the primary
func (m *Mongo) HealthCheck(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Shutdown disconnects the client
func (m *Mongo) Shutdown(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
