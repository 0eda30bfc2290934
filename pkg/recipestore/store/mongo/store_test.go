package mongo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/recipe-store/pkg/recipestore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsNamespaceNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"code 26", mongo.CommandError{Code: 26, Message: "ns does not exist"}, true},
		{"name only", mongo.CommandError{Name: "NamespaceNotFound"}, true},
		{"wrapped", fmt.Errorf("collMod: %w", mongo.CommandError{Code: 26}), true},
		{"unauthorized", mongo.CommandError{Code: 13, Name: "Unauthorized"}, false},
		{"network error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNamespaceNotFound(tt.err))
		})
	}
}

func TestTranslateWriteError(t *testing.T) {
	details, err := bson.Marshal(bson.M{
		"operatorName": "$jsonSchema",
		"schemaRulesNotSatisfied": bson.A{
			bson.M{"operatorName": "required", "missingProperties": bson.A{"title"}},
		},
	})
	require.NoError(t, err)

	t.Run("validation failure", func(t *testing.T) {
		we := mongo.WriteException{WriteErrors: mongo.WriteErrors{
			{Index: 0, Code: 121, Message: "Document failed validation", Details: bson.Raw(details)},
		}}

		got := translateWriteError("recipe-en", we)
		var verr *recipestore.SchemaValidationError
		require.ErrorAs(t, got, &verr)
		assert.Equal(t, "recipe-en", verr.Collection)
		assert.Equal(t, recipestore.SchemaValidationCode, verr.Code)
		assert.Equal(t, "Document failed validation", verr.Message)
		assert.Equal(t, "$jsonSchema", verr.Details["operatorName"])
		assert.NotNil(t, verr.Details["schemaRulesNotSatisfied"])
	})

	t.Run("other write error", func(t *testing.T) {
		we := mongo.WriteException{WriteErrors: mongo.WriteErrors{
			{Code: 11000, Message: "E11000 duplicate key error"},
		}}
		got := translateWriteError("recipe-en", we)
		assert.Equal(t, we, got)
	})

	t.Run("not a write exception", func(t *testing.T) {
		plain := errors.New("timeout")
		assert.Equal(t, plain, translateWriteError("recipe-en", plain))
	})
}

func TestParseDatabase(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"mongodb://localhost:27017/recipes", "recipes", false},
		{"mongodb://user:pass@db:27017/recipes?authSource=admin", "recipes", false},
		{"mongodb://localhost:27017", "", true},
		{"mongodb://localhost:27017/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := parseDatabase(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
