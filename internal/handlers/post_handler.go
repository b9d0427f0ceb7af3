package handlers

import (
	"context"
	"errors"
	"net/http"

	authmw "github.com/blogbackend/backend/internal/auth/middleware"
	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/blogbackend/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PostService is the interface that wraps methods for blog post business logic
type PostService interface {
	// Method List retrieves all posts with their tag names.
	List(ctx context.Context) ([]models.Post, error)
	// Method Get retrieves a post by "id".
	//
	// If post with such ID does not exist, ErrPostNotFound is returned together with "nil" value.
	Get(ctx context.Context, id int) (*models.Post, error)
	// Method ListByTag retrieves the posts carrying the tag named "tagName".
	ListByTag(ctx context.Context, tagName string) ([]models.Post, error)
	// Method ListTags retrieves all tags.
	ListTags(ctx context.Context) ([]models.Tag, error)
	// Method PruneTags deletes the tags no post references and returns how many were removed.
	PruneTags(ctx context.Context, actor policy.Identity) (int64, error)
	// Method Create stores a new post owned by "actor".
	//
	// "cover" parameter is the optional cover image. A taken title returns ErrDuplicateTitle.
	Create(ctx context.Context, actor policy.Identity, req *models.PostRequest, cover *models.Upload) (*models.Post, error)
	// Method Update replaces the post with "id".
	//
	// Without "privileged" only the owner may update; ErrPostNotFound and ErrForbidden are returned separately.
	// With "privileged" the actor must be an admin.
	Update(ctx context.Context, actor policy.Identity, id int, req *models.PostRequest, cover *models.Upload, privileged bool) (*models.Post, error)
	// Method Delete removes the post with "id".
	//
	// Please reference Update method for more information about "privileged" parameter and error values.
	Delete(ctx context.Context, actor policy.Identity, id int, privileged bool) error
}

// PostHandler handles HTTP requests for blog posts and tags
type PostHandler struct {
	BaseHandler
	service PostService
}

// NewPostHandler creates a new post handler
func NewPostHandler(svc PostService, validator Validator, logger *zap.Logger) *PostHandler {
	return &PostHandler{
		service:     svc,
		BaseHandler: BaseHandler{logger: logger, validator: validator},
	}
}

// RegisterRoutes registers all post handler routes
func (h *PostHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/blog", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/tags", h.ListTags)
		r.Get("/tag/{tag}", h.ListByTag)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)

			r.Route("/admin", func(r chi.Router) {
				r.With(authmw.RequirePolicy(policy.OpUpdateAnyPost)).Put("/{id}", h.AdminUpdate)
				r.With(authmw.RequirePolicy(policy.OpDeleteAnyPost)).Delete("/{id}", h.AdminDelete)
				r.With(authmw.RequirePolicy(policy.OpManageTags)).Delete("/tags/orphans", h.PruneTags)
			})
		})
	})
}

// List handles GET /api/blog
// @Summary Get all posts
// @Description Get all blog posts with their tags
// @Tags blog
// @Produce json
// @Success 200 {array} models.Post
// @Failure 500 {object} map[string]string
// @Router /api/blog [get]
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to get posts")
		return
	}

	h.respondJSON(w, http.StatusOK, posts)
}

// Get handles GET /api/blog/{id}
// @Summary Get post by ID
// @Tags blog
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/blog/{id} [get]
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondPostError(w, err, true)
		return
	}

	h.respondJSON(w, http.StatusOK, post)
}

// ListByTag handles GET /api/blog/tag/{tag}
// @Summary Get posts by tag
// @Description Get the posts associated with a tag. Tag names are case-sensitive.
// @Tags blog
// @Produce json
// @Param tag path string true "Tag name"
// @Success 200 {array} models.Post
// @Failure 500 {object} map[string]string
// @Router /api/blog/tag/{tag} [get]
func (h *PostHandler) ListByTag(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListByTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to get posts")
		return
	}

	h.respondJSON(w, http.StatusOK, posts)
}

// ListTags handles GET /api/blog/tags
// @Summary Get all tags
// @Tags blog
// @Produce json
// @Success 200 {array} models.Tag
// @Failure 500 {object} map[string]string
// @Router /api/blog/tags [get]
func (h *PostHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.ListTags(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to get tags")
		return
	}

	h.respondJSON(w, http.StatusOK, tags)
}

// Create handles POST /api/blog
// @Summary Create a post
// @Description Create a post owned by the current user. Tags that do not exist yet are created.
// @Tags blog
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title, at most 30 characters"
// @Param text formData string true "Post body"
// @Param category formData string true "Category"
// @Param tags formData []string false "Tag names" collectionFormat(multi)
// @Param coverImg formData file false "Cover image"
// @Success 201 {object} models.Post
// @Failure 400 {object} map[string]map[string]string "Per-field validation errors"
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string "Duplicate title"
// @Router /api/blog [post]
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := authmw.GetIdentity(r.Context())

	req, cover, closeCover, ok := h.parsePostForm(w, r)
	if !ok {
		return
	}
	defer closeCover()

	post, err := h.service.Create(r.Context(), *identity, req, cover)
	if err != nil {
		h.respondPostError(w, err, false)
		return
	}

	h.respondJSON(w, http.StatusCreated, post)
}

// Update handles PUT /api/blog/{id}
// @Summary Update own post
// @Description Replace the fields and tags of a post owned by the current user. A missing post and a post of another user both yield 404.
// @Tags blog
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Post ID"
// @Param title formData string true "Title, at most 30 characters"
// @Param text formData string true "Post body"
// @Param category formData string true "Category"
// @Param tags formData []string false "Tag names" collectionFormat(multi)
// @Param coverImg formData file false "Cover image, the current one is kept when omitted"
// @Success 200 {object} models.Post
// @Failure 400 {object} map[string]map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/blog/{id} [put]
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// AdminUpdate handles PUT /api/blog/admin/{id}
// @Summary Update any post
// @Description Replace the fields and tags of any post. The owner is kept. Requires ADMIN.
// @Tags blog-admin
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Post ID"
// @Param title formData string true "Title"
// @Param text formData string true "Post body"
// @Param category formData string true "Category"
// @Param tags formData []string false "Tag names" collectionFormat(multi)
// @Param coverImg formData file false "Cover image"
// @Success 200 {object} models.Post
// @Failure 400 {object} map[string]map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/blog/admin/{id} [put]
func (h *PostHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// Delete handles DELETE /api/blog/{id}
// @Summary Delete own post
// @Description Delete a post owned by the current user. A missing post and a post of another user both yield 404.
// @Tags blog
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/blog/{id} [delete]
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, false)
}

// AdminDelete handles DELETE /api/blog/admin/{id}
// @Summary Delete any post
// @Description Delete any post. Requires ADMIN.
// @Tags blog-admin
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/blog/admin/{id} [delete]
func (h *PostHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, true)
}

// PruneTags handles DELETE /api/blog/admin/tags/orphans
// @Summary Remove unused tags
// @Description Delete every tag that no post references. Requires ADMIN.
// @Tags blog-admin
// @Produce json
// @Success 200 {object} map[string]int64
// @Failure 403 {object} map[string]string
// @Router /api/blog/admin/tags/orphans [delete]
func (h *PostHandler) PruneTags(w http.ResponseWriter, r *http.Request) {
	identity, _ := authmw.GetIdentity(r.Context())

	removed, err := h.service.PruneTags(r.Context(), *identity)
	if err != nil {
		h.respondPostError(w, err, true)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (h *PostHandler) update(w http.ResponseWriter, r *http.Request, privileged bool) {
	identity, _ := authmw.GetIdentity(r.Context())
	id, ok := pathID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	req, cover, closeCover, ok := h.parsePostForm(w, r)
	if !ok {
		return
	}
	defer closeCover()

	post, err := h.service.Update(r.Context(), *identity, id, req, cover, privileged)
	if err != nil {
		h.respondPostError(w, err, privileged)
		return
	}

	h.respondJSON(w, http.StatusOK, post)
}

func (h *PostHandler) delete(w http.ResponseWriter, r *http.Request, privileged bool) {
	identity, _ := authmw.GetIdentity(r.Context())
	id, ok := pathID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.service.Delete(r.Context(), *identity, id, privileged); err != nil {
		h.respondPostError(w, err, privileged)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Blog deleted"})
}

// parsePostForm reads and validates the multipart post form, writing the error response on failure
func (h *PostHandler) parsePostForm(w http.ResponseWriter, r *http.Request) (*models.PostRequest, *models.Upload, func(), bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to parse request")
		return nil, nil, nil, false
	}

	req := &models.PostRequest{
		Title:    r.FormValue("title"),
		Body:     r.FormValue("text"),
		Category: r.FormValue("category"),
		Tags:     r.MultipartForm.Value["tags"],
	}
	if !h.validate(w, req) {
		return nil, nil, nil, false
	}

	cover, closeCover, err := formFile(r, "coverImg")
	if err != nil {
		h.logger.Error("failed to get cover image from form", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "failed to process cover image")
		return nil, nil, nil, false
	}

	return req, cover, closeCover, true
}

// respondPostError maps service errors to responses.
//
// Outside the privileged routes a post owned by someone else is reported as missing.
func (h *PostHandler) respondPostError(w http.ResponseWriter, err error, privileged bool) {
	switch {
	case errors.Is(err, models.ErrPostNotFound):
		h.respondError(w, http.StatusNotFound, "Blog not found")
	case errors.Is(err, models.ErrForbidden) && !privileged:
		h.respondError(w, http.StatusNotFound, "Blog not found")
	case errors.Is(err, models.ErrForbidden):
		h.respondError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, models.ErrDuplicateTitle):
		h.respondError(w, http.StatusConflict, "Blog with this title already exists")
	default:
		h.logger.Error("post request failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
