package cache

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "cache"

type entry struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoCache shares cached values between service instances through a
// collection.
type MongoCache struct {
	coll *mongo.Collection
}

func NewMongoCache(client *mongo.Client, database string) *MongoCache {
	return &MongoCache{coll: client.Database(database).Collection(collectionName)}
}

func (c *MongoCache) Get(ctx context.Context, key string) (string, bool, error) {
	var e entry
	err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return e.Value, true, nil
}

func (c *MongoCache) Set(ctx context.Context, key, value string) error {
	_, err := c.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		entry{Key: key, Value: value},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (c *MongoCache) Delete(ctx context.Context, key string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}
