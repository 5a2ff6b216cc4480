package database

import (
	"context"

	"noisewatch/internal/config"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel/attribute"
)

// Mongo collection names
const (
	ReportsCollection = "noise_reports"
	UsersCollection   = "users"
)

// ConnectMongo opens a client for cfg.Storage.MongoURI and returns the configured database
func (dm *Manager) ConnectMongo(ctx context.Context, cfg config.StorageConfig) (client *mongo.Client, db *mongo.Database, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ConnectMongo",
		attribute.String("db.system", "mongodb"),
		attribute.String("db.name", cfg.MongoDatabase),
	)
	defer observability.FinishSpan(span, &err)

	if cfg.MongoURI == "" {
		return nil, nil, contextutils.WrapError(contextutils.ErrMissingRequired, "mongo uri is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, config.MongoConnectTimeout)
	defer cancel()

	client, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, contextutils.WrapError(contextutils.ErrDatabaseConnection, "failed to connect to mongo: "+err.Error())
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, contextutils.WrapError(contextutils.ErrDatabaseConnection, "failed to ping mongo: "+err.Error())
	}

	name := cfg.MongoDatabase
	if name == "" {
		name = config.DefaultMongoDatabase
	}

	dm.logger.Info(ctx, "MongoDB connection established", map[string]interface{}{
		"uri":      contextutils.RedactURL(cfg.MongoURI),
		"database": name,
	})
	return client, client.Database(name), nil
}

// MongoIndexes returns the index models created for each collection
func MongoIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		ReportsCollection: {
			{Keys: bson.D{{Key: "geo", Value: "2dsphere"}}, Options: options.Index().SetName("geo_2dsphere")},
			{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("status_1")},
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetName("userId_1")},
			{Keys: bson.D{{Key: "noiseLevel", Value: 1}}, Options: options.Index().SetName("noiseLevel_1")},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("createdAt_-1")},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("createdAt_-1")},
		},
	}
}

// EnsureMongoIndexes creates the collection indexes. Existing indexes with the same spec are left alone.
func (dm *Manager) EnsureMongoIndexes(ctx context.Context, db *mongo.Database) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "EnsureMongoIndexes", attribute.String("db.system", "mongodb"))
	defer observability.FinishSpan(span, &err)

	for collection, models := range MongoIndexes() {
		names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to create indexes on %s", collection)
		}
		dm.logger.Debug(ctx, "Mongo indexes ensured", map[string]interface{}{
			"collection": collection,
			"indexes":    names,
		})
	}
	return nil
}
