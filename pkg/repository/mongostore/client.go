// Package mongostore implements the user and task stores on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	UsersCollection = "users"
	TasksCollection = "tasks"
)

// Index names. Duplicate key errors are matched on these.
const (
	usersEmailIndex    = "users_email_key"
	usersUsernameIndex = "users_username_key"
)

// Connect establishes a connection to MongoDB and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique and lookup indexes the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	hasString := func(field string) bson.D {
		return bson.D{{Key: field, Value: bson.D{{Key: "$type", Value: "string"}}}}
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(usersEmailIndex).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName(usersUsernameIndex).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "verification_code", Value: 1}},
			Options: options.Index().SetName("users_verification_code_idx").SetUnique(true).
				SetPartialFilterExpression(hasString("verification_code")),
		},
		{
			Keys: bson.D{{Key: "reset_code", Value: 1}},
			Options: options.Index().SetName("users_reset_code_idx").SetUnique(true).
				SetPartialFilterExpression(hasString("reset_code")),
		},
		{
			Keys: bson.D{{Key: "refresh_token_hash", Value: 1}},
			Options: options.Index().SetName("users_refresh_token_hash_idx").SetUnique(true).
				SetPartialFilterExpression(hasString("refresh_token_hash")),
		},
	}
	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	taskIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("tasks_user_id_created_at_idx"),
		},
	}
	if _, err := db.Collection(TasksCollection).Indexes().CreateMany(ctx, taskIndexes); err != nil {
		return fmt.Errorf("create task indexes: %w", err)
	}
	return nil
}
