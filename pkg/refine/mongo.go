package refine

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection holds one document per material key.
const DefaultCollection = "refined_variants"

type galleryDoc struct {
	Key      Key       `bson:"_id"`
	Variants []Variant `bson:"variants"`
}

// MongoStore is a Gallery backed by a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore uses the given collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// ConnectMongo connects to uri and returns a store on db.DefaultCollection
// together with the client, which the caller must disconnect.
func ConnectMongo(ctx context.Context, uri, db string) (*MongoStore, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client.Database(db).Collection(DefaultCollection)), client, nil
}

func (s *MongoStore) List(ctx context.Context, key Key) ([]Variant, error) {
	var doc galleryDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find gallery: %w", err)
	}
	sortVariants(doc.Variants)
	return doc.Variants, nil
}

func (s *MongoStore) Replace(ctx context.Context, key Key, variants []Variant) error {
	list := append([]Variant(nil), variants...)
	sortVariants(list)
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		galleryDoc{Key: key, Variants: list},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace gallery: %w", err)
	}
	return nil
}

func (s *MongoStore) Add(ctx context.Context, key Key, v Variant) error {
	list, err := s.List(ctx, key)
	if err != nil {
		return err
	}
	return s.Replace(ctx, key, merge(list, v))
}

var _ Gallery = (*MongoStore)(nil)
