package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/blogbackend/backend/internal/models"
	"github.com/blogbackend/backend/internal/validation"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartMemory is the part of a multipart body kept in memory, the rest spills to temp files
const multipartMemory = 10 << 20

// Validator validates request structs and returns validation.FieldErrors on failure
type Validator interface {
	Validate(s any) error
}

type BaseHandler struct {
	logger    *zap.Logger
	validator Validator
}

// respondJSON sends a JSON response
func (h *BaseHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error JSON response
func (h *BaseHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondFieldErrors sends per-field validation messages
func (h *BaseHandler) respondFieldErrors(w http.ResponseWriter, fields validation.FieldErrors) {
	h.respondJSON(w, http.StatusBadRequest, map[string]validation.FieldErrors{"errors": fields})
}

// validate runs the validator and writes a 400 response on failure.
// It reports whether the request is valid.
func (h *BaseHandler) validate(w http.ResponseWriter, req any) bool {
	err := h.validator.Validate(req)
	if err == nil {
		return true
	}

	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		h.respondFieldErrors(w, fields)
	} else {
		h.logger.Error("failed to validate request", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "invalid request")
	}
	return false
}

// formFile returns the optional uploaded file of field.
// The returned close function is never nil.
func formFile(r *http.Request, field string) (*models.Upload, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	if header.Size == 0 {
		file.Close()
		return nil, func() {}, nil
	}

	upload := &models.Upload{Filename: header.Filename, Content: file}
	return upload, func() { file.Close() }, nil
}

// pathID parses the positive integer id route parameter
func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
