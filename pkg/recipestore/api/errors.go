package api

import (
	"errors"
	"net/http"

	"github.com/tendant/recipe-store/pkg/recipestore"
)

// StatusFor maps a service error to an HTTP status code
func StatusFor(err error) int {
	var verr *recipestore.SchemaValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, recipestore.ErrMissingFilename),
		errors.Is(err, recipestore.ErrInvalidMetadata),
		errors.Is(err, recipestore.ErrMissingLogicalID),
		errors.Is(err, recipestore.ErrInvalidID),
		errors.Is(err, recipestore.ErrInvalidDocument),
		errors.Is(err, recipestore.ErrUnknownVariant):
		return http.StatusBadRequest
	case errors.Is(err, recipestore.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, recipestore.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
