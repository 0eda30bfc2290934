package memory

import (
	"fmt"

	"github.com/juju/gojsonschema"
	"go.mongodb.org/mongo-driver/bson"
)

// validator enforces a $jsonSchema rule-set. bsonType keywords are rewritten
// to JSON schema types; BSON-only types (objectId, date, ...) are not checked.
type validator struct {
	schema *gojsonschema.Schema
}

var bsonTypes = map[string]string{
	"object":  "object",
	"array":   "array",
	"string":  "string",
	"bool":    "boolean",
	"int":     "integer",
	"long":    "integer",
	"double":  "number",
	"decimal": "number",
	"number":  "number",
	"null":    "null",
}

func compileValidator(rules bson.M) (*validator, error) {
	if rules == nil {
		return nil, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(toJSONSchema(rules)))
	if err != nil {
		return nil, fmt.Errorf("invalid $jsonSchema: %w", err)
	}
	return &validator{schema: schema}, nil
}

// validate returns one description per unsatisfied rule
func (v *validator) validate(doc bson.M) ([]string, error) {
	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	result, err := v.schema.Validate(gojsonschema.NewStringLoader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to validate document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return violations, nil
}

func toJSONSchema(v interface{}) interface{} {
	switch t := normalize(v).(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if k == "bsonType" {
				if typ, ok := jsonType(val); ok {
					out["type"] = typ
				}
				continue
			}
			out[k] = toJSONSchema(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = toJSONSchema(val)
		}
		return out
	default:
		return t
	}
}

func jsonType(v interface{}) (interface{}, bool) {
	switch t := normalize(v).(type) {
	case string:
		typ, ok := bsonTypes[t]
		return typ, ok
	case []interface{}:
		types := make([]interface{}, 0, len(t))
		seen := make(map[string]bool, len(t))
		for _, elem := range t {
			name, ok := elem.(string)
			if !ok {
				return nil, false
			}
			typ, ok := bsonTypes[name]
			if !ok {
				return nil, false
			}
			// int and long both map to integer
			if seen[typ] {
				continue
			}
			seen[typ] = true
			types = append(types, typ)
		}
		return types, true
	}
	return nil, false
}
