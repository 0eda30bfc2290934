package recipestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// LoadSchemas reads one schema definition per file from root and returns them
// keyed by entity name. The entity name is the file's base name up to the
// first ".". Files hold MongoDB extended JSON so "$"-prefixed operators and
// bsonType keywords survive as written.
func LoadSchemas(root string) (map[string]*Schema, error) {
	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrResourceMissing, root)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrResourceMissing, root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	schemas := make(map[string]*Schema, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		schema, err := parseSchemaFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := schemas[schema.Entity]; ok {
			return nil, &SchemaParseError{
				File: path,
				Err:  fmt.Errorf("entity %q already defined by %s", schema.Entity, prev.File),
			}
		}
		schemas[schema.Entity] = schema
	}

	return schemas, nil
}

// EntityName derives the entity name from a schema file path
func EntityName(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

func parseSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SchemaParseError{File: path, Err: err}
	}

	entity := EntityName(path)
	if entity == "" {
		return nil, &SchemaParseError{File: path, Err: errors.New("empty entity name")}
	}

	var rules bson.M
	if err := bson.UnmarshalExtJSON(data, false, &rules); err != nil {
		return nil, &SchemaParseError{File: path, Err: err}
	}
	if len(rules) == 0 {
		return nil, &SchemaParseError{File: path, Err: errors.New("schema document is empty")}
	}

	return &Schema{
		Entity: entity,
		File:   path,
		Rules:  rules,
	}, nil
}
