// Package memory is an in-memory implementation of the recipestore storage
// surface. Collections enforce their $jsonSchema validators and the bucket
// keeps its files documents in a regular collection, so the same
// provisioning and upload code runs against it as against MongoDB.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/recipe-store/pkg/recipestore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Database is an in-memory implementation of recipestore.Store
type Database struct {
	mu          sync.RWMutex
	collections map[string]*collection
	buckets     map[string]*Bucket
	closed      bool
}

type collection struct {
	name      string
	rules     bson.M
	validator *validator
	docs      []bson.M
}

// New creates a new in-memory database
func New() *Database {
	return &Database{
		collections: make(map[string]*collection),
		buckets:     make(map[string]*Bucket),
	}
}

// ApplyValidator replaces the validator of an existing collection
func (d *Database) ApplyValidator(ctx context.Context, name string, rules bson.M) error {
	v, err := compileValidator(rules)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(); err != nil {
		return err
	}
	c, ok := d.collections[name]
	if !ok {
		return fmt.Errorf("collMod %s: %w", name, recipestore.ErrNamespaceNotFound)
	}
	c.rules = rules
	c.validator = v
	return nil
}

// CreateCollection creates a collection with a validator
func (d *Database) CreateCollection(ctx context.Context, name string, rules bson.M) error {
	v, err := compileValidator(rules)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen(); err != nil {
		return err
	}
	if _, ok := d.collections[name]; ok {
		return fmt.Errorf("collection %s already exists", name)
	}
	d.collections[name] = &collection{name: name, rules: rules, validator: v}
	return nil
}

// Collection returns a handle to the named collection. Like MongoDB, the
// collection springs into existence, without a validator, on first insert.
func (d *Database) Collection(name string) recipestore.DocumentCollection {
	return &collectionHandle{db: d, name: name}
}

// CollectionNames lists existing collections in sorted order
func (d *Database) CollectionNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.collections))
	for name := range d.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validator returns the $jsonSchema rules attached to a collection
func (d *Database) Validator(name string) (bson.M, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[name]
	if !ok || c.rules == nil {
		return nil, false
	}
	return c.rules, true
}

// Close releases the database. Further operations fail.
func (d *Database) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Database) checkOpen() error {
	if d.closed {
		return errors.New("database is closed")
	}
	return nil
}

// collectionHandle implements recipestore.DocumentCollection
type collectionHandle struct {
	db   *Database
	name string
}

func (h *collectionHandle) InsertOne(ctx context.Context, document bson.M) (interface{}, error) {
	doc, err := clone(document)
	if err != nil {
		return nil, err
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}

	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	if err := h.db.checkOpen(); err != nil {
		return nil, err
	}
	c, ok := h.db.collections[h.name]
	if !ok {
		c = &collection{name: h.name}
		h.db.collections[h.name] = c
	}
	for _, existing := range c.docs {
		if valuesEqual(existing["_id"], doc["_id"]) {
			return nil, fmt.Errorf("E11000 duplicate key error collection: %s _id: %v", h.name, doc["_id"])
		}
	}
	if err := c.validate(doc); err != nil {
		return nil, err
	}

	c.docs = append(c.docs, doc)
	return doc["_id"], nil
}

func (h *collectionHandle) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	docs, err := h.find(filter, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, recipestore.ErrNotFound
	}
	return docs[0], nil
}

func (h *collectionHandle) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	return h.find(filter, 0)
}

func (h *collectionHandle) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	if err := h.db.checkOpen(); err != nil {
		return 0, err
	}
	c, ok := h.db.collections[h.name]
	if !ok {
		return 0, nil
	}
	for i, doc := range c.docs {
		matched, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if matched {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// updateSet sets a top-level or dotted field on the first document matching
// filter, re-validating the result
func (h *collectionHandle) updateSet(filter bson.M, path string, value interface{}) (int64, error) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()

	if err := h.db.checkOpen(); err != nil {
		return 0, err
	}
	c, ok := h.db.collections[h.name]
	if !ok {
		return 0, nil
	}
	for i, doc := range c.docs {
		matched, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if !matched {
			continue
		}
		updated, err := clone(doc)
		if err != nil {
			return 0, err
		}
		setPath(updated, path, value)
		if err := c.validate(updated); err != nil {
			return 0, err
		}
		c.docs[i] = updated
		return 1, nil
	}
	return 0, nil
}

func (h *collectionHandle) find(filter bson.M, limit int) ([]bson.M, error) {
	h.db.mu.RLock()
	defer h.db.mu.RUnlock()

	if err := h.db.checkOpen(); err != nil {
		return nil, err
	}
	c, ok := h.db.collections[h.name]
	if !ok {
		return nil, nil
	}

	var out []bson.M
	for _, doc := range c.docs {
		matched, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		cp, err := clone(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *collection) validate(doc bson.M) error {
	if c.validator == nil {
		return nil
	}
	violations, err := c.validator.validate(doc)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	return &recipestore.SchemaValidationError{
		Collection: c.name,
		Code:       recipestore.SchemaValidationCode,
		Message:    "Document failed validation",
		Details: map[string]interface{}{
			"operatorName":            "$jsonSchema",
			"schemaRulesNotSatisfied": violations,
		},
	}
}

// clone deep-copies a document through a BSON round trip, which also
// normalizes values to the types MongoDB would hand back
func clone(doc bson.M) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}
