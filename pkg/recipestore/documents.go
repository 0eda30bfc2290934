package recipestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document operations

func (s *service) InsertDocument(ctx context.Context, entity, variant string, document bson.M) (interface{}, error) {
	name, err := s.collectionFor(entity, variant)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, &DocumentError{Collection: name, Op: "insert", Err: fmt.Errorf("%w: document is required", ErrInvalidDocument)}
	}

	// Ids arrive as hex strings from JSON bodies; a missing id gets a fresh one.
	switch id := document["_id"].(type) {
	case nil:
		document["_id"] = primitive.NewObjectID()
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
		}
		document["_id"] = oid
	case primitive.ObjectID:
	default:
		return nil, fmt.Errorf("%w: unsupported _id type %T", ErrInvalidID, id)
	}

	insertedID, err := s.store.Collection(name).InsertOne(ctx, document)
	if err != nil {
		var verr *SchemaValidationError
		if errors.As(err, &verr) {
			s.logger.Warn("Document rejected by schema", "collection", name, "details", verr.Details)
		}
		return nil, &DocumentError{Collection: name, Op: "insert", Err: err}
	}
	return insertedID, nil
}

func (s *service) GetDocument(ctx context.Context, entity, variant, id string) (bson.M, error) {
	name, err := s.collectionFor(entity, variant)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	document, err := s.store.Collection(name).FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, &DocumentError{Collection: name, Op: "get", Err: err}
	}
	return document, nil
}

func (s *service) DeleteDocument(ctx context.Context, entity, variant, id string) error {
	name, err := s.collectionFor(entity, variant)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	deleted, err := s.store.Collection(name).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return &DocumentError{Collection: name, Op: "delete", Err: err}
	}
	if deleted != 1 {
		return &DocumentError{Collection: name, Op: "delete", Err: ErrNotFound}
	}
	return nil
}

func (s *service) FindDocuments(ctx context.Context, entity, variant string, filter bson.M) ([]bson.M, error) {
	name, err := s.collectionFor(entity, variant)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = bson.M{}
	}

	documents, err := s.store.Collection(name).Find(ctx, filter)
	if err != nil {
		return nil, &DocumentError{Collection: name, Op: "find", Err: err}
	}
	return documents, nil
}

// Recipe operations

// SearchRecipes finds recipes whose title contains text and which have an
// ingredient containing each of ingredients, all case-insensitive.
func (s *service) SearchRecipes(ctx context.Context, language, text string, ingredients []string) ([]bson.M, error) {
	return s.FindDocuments(ctx, EntityRecipe, language, RecipeSearchFilter(text, ingredients))
}

// RecipeSearchFilter builds the containment filter used by SearchRecipes
func RecipeSearchFilter(text string, ingredients []string) bson.M {
	filter := bson.M{
		"title": bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"},
	}

	var conditions bson.A
	for _, ingredient := range ingredients {
		ingredient = strings.TrimSpace(ingredient)
		if ingredient == "" {
			continue
		}
		conditions = append(conditions, bson.M{
			"$elemMatch": bson.M{
				"ingredient": bson.M{"$regex": regexp.QuoteMeta(ingredient), "$options": "i"},
			},
		})
	}
	if len(conditions) > 0 {
		filter["components.ingredients"] = bson.M{"$all": conditions}
	}

	return filter
}

// collectionFor resolves the collection for an entity, enforcing configured
// languages for recipes
func (s *service) collectionFor(entity, variant string) (string, error) {
	if entity == "" {
		return "", errors.New("entity is required")
	}
	if entity == EntityRecipe {
		code := strings.ToLower(strings.TrimSpace(variant))
		if _, ok := s.languages[code]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
		}
		return CollectionName(entity, code), nil
	}
	return CollectionName(entity, variant), nil
}
