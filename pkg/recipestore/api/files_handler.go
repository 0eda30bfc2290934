package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/recipe-store/pkg/recipestore"
)

// FilesHandler handles binary object upload and download endpoints
type FilesHandler struct {
	service recipestore.Service
}

func NewFilesHandler(service recipestore.Service) *FilesHandler {
	return &FilesHandler{
		service: service,
	}
}

// Routes returns the router for file endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.UploadFile)
	r.Get("/{id}", h.GetFile)
	r.Get("/{id}/download", h.DownloadFile)
	return r
}

// UploadFileResponse represents the response after uploading a file
type UploadFileResponse struct {
	ID string `json:"id"`
}

// UploadFile streams the request body into the bucket. The logical id is
// taken from the "id" query parameter or generated.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	logicalID := query.Get("id")
	if logicalID == "" {
		logicalID = uuid.NewString()
	}

	result, err := h.service.Upload(r.Context(), recipestore.UploadRequest{
		LogicalID: logicalID,
		Filename:  query.Get("filename"),
		Metadata:  query.Get("metadata"),
		Reader:    r.Body,
	})
	if err != nil {
		slog.Error("Failed to upload file", "id", logicalID, "error", err)
		http.Error(w, err.Error(), StatusFor(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadFileResponse{ID: result.LogicalID})
}

// GetFile returns the files document of a logical id
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	file, err := h.service.FetchByLogicalID(r.Context(), id)
	if err != nil {
		slog.Warn("Failed to get file", "id", id, "error", err)
		http.Error(w, err.Error(), StatusFor(err))
		return
	}

	render.JSON(w, r, file)
}

// DownloadFile streams the bytes of a logical id
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rc, file, err := h.service.DownloadByLogicalID(r.Context(), id)
	if err != nil {
		slog.Warn("Failed to open file for download", "id", id, "error", err)
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(file.Length, 10))
	if file.Filename != "" {
		w.Header().Set("Content-Disposition", contentDisposition(file.Filename))
	}
	w.WriteHeader(http.StatusOK)

	// Headers are sent; a failure from here on can only be logged.
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("Download interrupted", "id", id, "error", err)
	}
}
