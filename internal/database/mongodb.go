package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the subscription store and checker rely on.
// The (attr, value) and (user, sub) compound indexes are unique: the atomic
// find-or-create upserts depend on them to collapse concurrent identical inserts.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	subs := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "attr", Value: 1}, {Key: "value", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "attr", Value: "hashed"}}},
	}
	if _, err := db.Collection("subs").Indexes().CreateMany(ctx, subs); err != nil {
		return fmt.Errorf("subs indexes: %w", err)
	}

	links := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "sub", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "sub", Value: "hashed"}}},
		{Keys: bson.D{{Key: "added", Value: 1}}},
	}
	if _, err := db.Collection("links").Indexes().CreateMany(ctx, links); err != nil {
		return fmt.Errorf("links indexes: %w", err)
	}
	return nil
}
