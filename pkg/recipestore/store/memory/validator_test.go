package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToJSONSchema(t *testing.T) {
	rules := bson.M{
		"bsonType": "object",
		"required": bson.A{"_id", "title"},
		"properties": bson.M{
			"_id":      bson.M{"bsonType": "objectId"},
			"title":    bson.M{"bsonType": "string", "minLength": 1},
			"portions": bson.M{"bsonType": bson.A{"int", "long", "double"}},
			"ready":    bson.M{"bsonType": "bool"},
		},
	}

	got := toJSONSchema(rules).(map[string]interface{})
	assert.Equal(t, "object", got["type"])
	assert.NotContains(t, got, "bsonType")

	props := got["properties"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{}, props["_id"], "objectId is not checked")
	assert.Equal(t, "string", props["title"].(map[string]interface{})["type"])
	assert.Equal(t, []interface{}{"integer", "number"}, props["portions"].(map[string]interface{})["type"])
	assert.Equal(t, "boolean", props["ready"].(map[string]interface{})["type"])
}

func TestValidator(t *testing.T) {
	v, err := compileValidator(bson.M{
		"bsonType": "object",
		"required": bson.A{"_id", "title", "created"},
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "objectId"},
			"title":   bson.M{"bsonType": "string"},
			"created": bson.M{"bsonType": "date"},
			"count":   bson.M{"bsonType": "long"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, v)

	violations, err := v.validate(bson.M{
		"_id":     primitive.NewObjectID(),
		"title":   "ok",
		"created": primitive.NewDateTimeFromTime(primitive.NewObjectID().Timestamp()),
		"count":   int64(7),
	})
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = v.validate(bson.M{"_id": primitive.NewObjectID(), "count": "seven"})
	require.NoError(t, err)
	assert.Len(t, violations, 3)
}

func TestCompileValidator(t *testing.T) {
	v, err := compileValidator(nil)
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = compileValidator(bson.M{"required": "title"})
	assert.Error(t, err)
}
