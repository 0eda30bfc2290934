package recipestore

import (
	"context"
	"errors"
	"log/slog"
	"sort"
)

// Provisioner reconciles schemas against live collections.
// It runs once at startup and is not safe for concurrent use.
type Provisioner struct {
	store     Store
	bucket    string
	languages []string
	logger    *slog.Logger
}

// NewProvisioner creates a provisioner. bucketName is the bucket whose files
// namespace receives the "file" schema, languages are the recipe variants.
func NewProvisioner(store Store, bucketName string, languages []string, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	if bucketName == "" {
		bucketName = DefaultBucketName
	}
	return &Provisioner{
		store:     store,
		bucket:    bucketName,
		languages: languages,
		logger:    logger,
	}
}

// ProvisionAll reconciles every loaded schema. It stops at the first failure.
func (p *Provisioner) ProvisionAll(ctx context.Context, schemas map[string]*Schema) error {
	entities := make([]string, 0, len(schemas))
	for entity := range schemas {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		schema := schemas[entity]
		var err error
		switch entity {
		case EntityFile:
			err = p.ensure(ctx, p.bucket+".files", schema)
		case EntityRecipe:
			if len(p.languages) == 0 {
				p.logger.Warn("No languages configured, skipping recipe collections", "entity", entity)
				continue
			}
			err = p.Reconcile(ctx, entity, schema, p.languages...)
		default:
			err = p.Reconcile(ctx, entity, schema)
		}
		if err != nil {
			return err
		}
	}

	p.logger.Info("All database schemas reconciled", "count", len(schemas))
	return nil
}

// Reconcile ensures the entity collection, or one collection per variant,
// exists and carries schema as its validator.
func (p *Provisioner) Reconcile(ctx context.Context, entity string, schema *Schema, variants ...string) error {
	if len(variants) == 0 {
		return p.ensure(ctx, CollectionName(entity, ""), schema)
	}
	for _, variant := range variants {
		if err := p.ensure(ctx, CollectionName(entity, variant), schema); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) ensure(ctx context.Context, name string, schema *Schema) error {
	err := p.store.ApplyValidator(ctx, name, schema.Rules)
	if err == nil {
		p.logger.Debug("Collection validator applied", "collection", name)
		return nil
	}
	if !errors.Is(err, ErrNamespaceNotFound) {
		return &ProvisioningError{Collection: name, Err: err}
	}

	p.logger.Info("Collection does not exist and will be created", "collection", name)
	if err := p.store.CreateCollection(ctx, name, schema.Rules); err != nil {
		return &ProvisioningError{Collection: name, Err: err}
	}
	return nil
}
