package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/recipe-store/pkg/recipestore"
	"go.mongodb.org/mongo-driver/bson"
)

// RecipeHandler handles recipe document endpoints. Every recipe request
// names its language with the "language" query parameter.
type RecipeHandler struct {
	service recipestore.Service
}

func NewRecipeHandler(service recipestore.Service) *RecipeHandler {
	return &RecipeHandler{
		service: service,
	}
}

// Routes returns the router for recipe endpoints
func (h *RecipeHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateRecipe)
	r.Get("/search", h.SearchRecipes)
	r.Get("/{id}", h.GetRecipe)
	r.Delete("/{id}", h.DeleteRecipe)
	return r
}

// Answer is the envelope of every recipe response
type Answer struct {
	Timestamp string      `json:"timestamp"`
	Success   bool        `json:"success"`
	Result    interface{} `json:"result,omitempty"`
	Code      int         `json:"code"`
	Error     string      `json:"error"`
	Details   interface{} `json:"details,omitempty"`
}

func newAnswer(result interface{}, err error) (int, Answer) {
	answer := Answer{
		Timestamp: time.Now().UTC().Format(time.DateOnly),
	}
	if err == nil {
		answer.Success = true
		answer.Result = result
		answer.Code = http.StatusOK
		answer.Error = "No error"
		return http.StatusOK, answer
	}

	answer.Code = StatusFor(err)
	answer.Error = fmt.Sprintf("%d - %s", answer.Code, err.Error())
	var verr *recipestore.SchemaValidationError
	if errors.As(err, &verr) {
		answer.Details = verr.Details
	}
	return answer.Code, answer
}

func respond(w http.ResponseWriter, r *http.Request, result interface{}, err error) {
	status, answer := newAnswer(result, err)
	render.Status(r, status)
	render.JSON(w, r, answer)
}

// CreateRecipe inserts the JSON body into the recipe collection of a language
func (h *RecipeHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	language := r.URL.Query().Get("language")

	var document bson.M
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&document); err != nil {
		slog.Error("Failed to decode recipe", "error", err)
		respond(w, r, nil, fmt.Errorf("%w: %v", recipestore.ErrInvalidDocument, err))
		return
	}

	id, err := h.service.InsertDocument(r.Context(), recipestore.EntityRecipe, language, document)
	if err != nil {
		slog.Error("Failed to create recipe", "language", language, "error", err)
		respond(w, r, nil, err)
		return
	}

	slog.Info("Recipe created", "language", language, "id", id)
	respond(w, r, map[string]interface{}{"acknowledged": true, "insertedId": id}, nil)
}

// GetRecipe returns a recipe by id
func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	language := r.URL.Query().Get("language")

	recipe, err := h.service.GetDocument(r.Context(), recipestore.EntityRecipe, language, id)
	if err != nil {
		slog.Warn("Failed to get recipe", "id", id, "language", language, "error", err)
		respond(w, r, nil, err)
		return
	}
	respond(w, r, recipe, nil)
}

// DeleteRecipe removes a recipe by id
func (h *RecipeHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	language := r.URL.Query().Get("language")

	if err := h.service.DeleteDocument(r.Context(), recipestore.EntityRecipe, language, id); err != nil {
		slog.Warn("Failed to delete recipe", "id", id, "language", language, "error", err)
		respond(w, r, nil, err)
		return
	}
	respond(w, r, map[string]interface{}{"acknowledged": true, "deletedCount": 1}, nil)
}

// SearchRecipes finds recipes by title text and a comma separated ingredient list
func (h *RecipeHandler) SearchRecipes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	language := query.Get("language")

	var ingredients []string
	if raw := query.Get("ingredients"); raw != "" {
		ingredients = strings.Split(raw, ",")
	}

	recipes, err := h.service.SearchRecipes(r.Context(), language, query.Get("text"), ingredients)
	if err != nil {
		slog.Error("Failed to search recipes", "language", language, "error", err)
		respond(w, r, nil, err)
		return
	}
	if recipes == nil {
		recipes = []bson.M{}
	}
	respond(w, r, recipes, nil)
}
