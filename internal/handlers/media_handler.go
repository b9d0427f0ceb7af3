package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/blogbackend/backend/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// FileOpener opens stored uploads by name
type FileOpener interface {
	Open(name string) (*os.File, error)
}

// MediaHandler serves uploaded files
type MediaHandler struct {
	BaseHandler
	files FileOpener
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(files FileOpener, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		files:       files,
		BaseHandler: BaseHandler{logger: logger},
	}
}

// RegisterRoutes registers all media handler routes
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/uploads/{name}", h.Serve)
}

// Serve handles GET /api/uploads/{name}
// @Summary Get uploaded file
// @Description Serve a profile or cover image by its stored name
// @Tags uploads
// @Produce octet-stream
// @Param name path string true "Stored file name"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]string
// @Router /api/uploads/{name} [get]
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	file, err := h.files.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) || errors.Is(err, os.ErrNotExist) {
			h.respondError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("failed to open upload", zap.String("name", name), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		h.respondError(w, http.StatusNotFound, "file not found")
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
