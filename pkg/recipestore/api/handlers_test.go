package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/recipe-store/pkg/recipestore"
	"github.com/tendant/recipe-store/pkg/recipestore/store/memory"
)

// setupRouter mounts the handlers on a service backed by the in-memory store
// provisioned with the shipped schemas
func setupRouter(t *testing.T) (http.Handler, recipestore.Service) {
	t.Helper()
	db := memory.New()

	schemas, err := recipestore.LoadSchemas("../../../schemas/database")
	require.NoError(t, err)
	p := recipestore.NewProvisioner(db, "", []string{"en", "sv"}, nil)
	require.NoError(t, p.ProvisionAll(context.Background(), schemas))

	svc, err := recipestore.New(
		recipestore.WithStore(db),
		recipestore.WithBucket(db.Bucket("")),
		recipestore.WithLanguages("en", "sv"),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/file", NewFilesHandler(svc).Routes())
	r.Mount("/recipe", NewRecipeHandler(svc).Routes())
	return r, svc
}

func uploadURL(values map[string]string) string {
	q := url.Values{}
	for k, v := range values {
		q.Set(k, v)
	}
	return "/file?" + q.Encode()
}

func TestFilesHandler_UploadAndDownload(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, uploadURL(map[string]string{
		"id":       "abc123",
		"filename": "pancakes.png",
		"metadata": `{"tag":"x"}`,
	}), strings.NewReader("image bytes"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp UploadFileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.ID)

	req = httptest.NewRequest(http.MethodGet, "/file/abc123", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var file map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &file))
	assert.Equal(t, "pancakes.png", file["filename"])
	assert.EqualValues(t, 11, file["length"])
	metadata := file["metadata"].(map[string]interface{})
	assert.Equal(t, "abc123", metadata["id"])
	assert.Equal(t, "x", metadata["tag"])

	req = httptest.NewRequest(http.MethodGet, "/file/abc123/download", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "11", w.Header().Get("Content-Length"))
	assert.Equal(t, "attachment; filename=pancakes.png", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "image bytes", w.Body.String())
}

func TestFilesHandler_GeneratesLogicalID(t *testing.T) {
	router, svc := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, uploadURL(map[string]string{"filename": "a.png"}), strings.NewReader("x"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp UploadFileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)

	_, err := svc.FetchByLogicalID(context.Background(), resp.ID)
	assert.NoError(t, err)
}

func TestFilesHandler_UploadErrors(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, uploadURL(map[string]string{"id": "dup", "filename": "a.png"}), strings.NewReader("x"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name       string
		query      map[string]string
		wantStatus int
	}{
		{"duplicate id", map[string]string{"id": "dup", "filename": "b.png"}, http.StatusConflict},
		{"missing filename", map[string]string{"id": "new"}, http.StatusBadRequest},
		{"bad metadata", map[string]string{"id": "new", "filename": "a.png", "metadata": "[1]"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, uploadURL(tt.query), strings.NewReader("y"))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestFilesHandler_NotFound(t *testing.T) {
	router, _ := setupRouter(t)

	for _, path := range []string{"/file/missing", "/file/missing/download"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func decodeAnswer(t *testing.T, body *bytes.Buffer) Answer {
	t.Helper()
	var answer Answer
	require.NoError(t, json.Unmarshal(body.Bytes(), &answer))
	return answer
}

const pancakes = `{
	"title": "Pancakes",
	"portions": 4,
	"components": [
		{"name": "batter", "ingredients": [
			{"ingredient": "Wheat flour", "amount": 2.5, "unit": "dl"},
			{"ingredient": "Milk", "amount": 6, "unit": "dl"},
			{"ingredient": "Egg", "amount": 3}
		]}
	]
}`

func TestRecipeHandler_Lifecycle(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/recipe?language=EN", strings.NewReader(pancakes))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	answer := decodeAnswer(t, w.Body)
	assert.True(t, answer.Success)
	assert.Equal(t, "No error", answer.Error)
	result := answer.Result.(map[string]interface{})
	assert.Equal(t, true, result["acknowledged"])
	id, ok := result["insertedId"].(string)
	require.True(t, ok, "insertedId is %T", result["insertedId"])

	req = httptest.NewRequest(http.MethodGet, "/recipe/"+id+"?language=en", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	answer = decodeAnswer(t, w.Body)
	assert.Equal(t, "Pancakes", answer.Result.(map[string]interface{})["title"])

	req = httptest.NewRequest(http.MethodGet, "/recipe/search?language=en&text=cake&ingredients=egg,FLOUR", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	answer = decodeAnswer(t, w.Body)
	assert.Len(t, answer.Result, 1)

	req = httptest.NewRequest(http.MethodDelete, "/recipe/"+id+"?language=en", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/recipe/"+id+"?language=en", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	answer = decodeAnswer(t, w.Body)
	assert.False(t, answer.Success)
	assert.Equal(t, http.StatusNotFound, answer.Code)
}

func TestRecipeHandler_SearchEmpty(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/recipe/search?language=sv&text=bullar", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":[]`)
}

func TestRecipeHandler_Errors(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		wantStatus  int
		wantDetails bool
	}{
		{"schema violation", http.MethodPost, "/recipe?language=en", `{"components": []}`, http.StatusBadRequest, true},
		{"malformed body", http.MethodPost, "/recipe?language=en", `{"title":`, http.StatusBadRequest, false},
		{"unknown language", http.MethodPost, "/recipe?language=fr", pancakes, http.StatusBadRequest, false},
		{"bad id", http.MethodGet, "/recipe/xyz?language=en", "", http.StatusBadRequest, false},
		{"missing recipe", http.MethodDelete, "/recipe/65f1c0ffee00000000000000?language=en", "", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			answer := decodeAnswer(t, w.Body)
			assert.False(t, answer.Success)
			assert.Equal(t, tt.wantStatus, answer.Code)
			assert.True(t, strings.HasPrefix(answer.Error, fmt.Sprint(tt.wantStatus)), answer.Error)
			if tt.wantDetails {
				assert.NotNil(t, answer.Details)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"schema validation", &recipestore.SchemaValidationError{Code: 121}, http.StatusBadRequest},
		{"wrapped schema validation", &recipestore.DocumentError{Err: &recipestore.SchemaValidationError{}}, http.StatusBadRequest},
		{"missing filename", &recipestore.UploadError{Err: recipestore.ErrMissingFilename}, http.StatusBadRequest},
		{"duplicate", &recipestore.UploadError{Err: recipestore.ErrDuplicateID}, http.StatusConflict},
		{"not found", fmt.Errorf("file x: %w", recipestore.ErrNotFound), http.StatusNotFound},
		{"unknown variant", recipestore.ErrUnknownVariant, http.StatusBadRequest},
		{"stream failure", fmt.Errorf("%w: reset", recipestore.ErrUploadStream), http.StatusInternalServerError},
		{"metadata commit", recipestore.ErrMetadataCommit, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
