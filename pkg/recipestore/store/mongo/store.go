package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/recipe-store/pkg/recipestore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// codeNamespaceNotFound is the server error code for a missing collection
const codeNamespaceNotFound = 26

// Store implements recipestore.Store on a MongoDB database
type Store struct {
	db *mongo.Database
}

// ApplyValidator runs collMod to attach rules to an existing collection
func (s *Store) ApplyValidator(ctx context.Context, name string, rules bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: bson.M{"$jsonSchema": rules}},
	}
	err := s.db.RunCommand(ctx, cmd).Err()
	if err == nil {
		return nil
	}
	if isNamespaceNotFound(err) {
		return fmt.Errorf("collMod %s: %w: %w", name, recipestore.ErrNamespaceNotFound, err)
	}
	return fmt.Errorf("collMod %s: %w", name, err)
}

// CreateCollection creates a collection validated by rules
func (s *Store) CreateCollection(ctx context.Context, name string, rules bson.M) error {
	opts := options.CreateCollection().SetValidator(bson.M{"$jsonSchema": rules})
	if err := s.db.CreateCollection(ctx, name, opts); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// Collection returns a handle to the named collection
func (s *Store) Collection(name string) recipestore.DocumentCollection {
	return &Collection{coll: s.db.Collection(name)}
}

// isNamespaceNotFound matches only the server's NamespaceNotFound reply
func isNamespaceNotFound(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == codeNamespaceNotFound || cmdErr.Name == "NamespaceNotFound"
	}
	return false
}

// Collection implements recipestore.DocumentCollection
type Collection struct {
	coll *mongo.Collection
}

func (c *Collection) InsertOne(ctx context.Context, document bson.M) (interface{}, error) {
	res, err := c.coll.InsertOne(ctx, document)
	if err != nil {
		return nil, c.translate(err)
	}
	return res.InsertedID, nil
}

func (c *Collection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, recipestore.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Collection) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	cursor, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// translate turns a document validation failure into *recipestore.SchemaValidationError
func (c *Collection) translate(err error) error {
	return translateWriteError(c.coll.Name(), err)
}

func translateWriteError(collection string, err error) error {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return err
	}
	for _, e := range we.WriteErrors {
		if e.Code != recipestore.SchemaValidationCode {
			continue
		}
		verr := &recipestore.SchemaValidationError{
			Collection: collection,
			Code:       e.Code,
			Message:    e.Message,
		}
		if len(e.Details) > 0 {
			var details map[string]interface{}
			if uerr := bson.Unmarshal(e.Details, &details); uerr == nil {
				verr.Details = details
			}
		}
		return verr
	}
	return err
}
