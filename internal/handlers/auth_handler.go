package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	authmw "github.com/blogbackend/backend/internal/auth/middleware"
	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/blogbackend/backend/internal/models"
	"github.com/blogbackend/backend/internal/validation"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthService is the interface that wraps methods for user authentication and role management
type AuthService interface {
	// Method Register creates a new user with the USER role.
	//
	// "image" parameter is the optional profile image, "nil" means the default image is used.
	// If the email is already registered, ErrEmailTaken is returned.
	Register(ctx context.Context, req *models.RegisterRequest, image *models.Upload) (*models.User, error)
	// Method Login verifies the credentials and returns a standard session token.
	//
	// Wrong email and wrong password both return ErrInvalidCredentials.
	Login(ctx context.Context, req *models.LoginRequest) (string, error)
	// Method AdminLogin verifies the credentials and returns an elevated session token.
	//
	// Please reference Login method for credential errors. Users without ADMIN get ErrNotAdmin.
	AdminLogin(ctx context.Context, req *models.LoginRequest) (string, error)
	// Method GetProfile retrieves the public profile of the user with "userID".
	GetProfile(ctx context.Context, userID int) (*models.UserProfileResponse, error)
	// Method GrantRole adds "role" to the user registered with "email".
	//
	// If user with such email does not exist, ErrUserNotFound is returned.
	GrantRole(ctx context.Context, email string, role policy.Role) error
}

// AuthHandler handles HTTP requests for authentication
type AuthHandler struct {
	BaseHandler
	service       AuthService
	sessionMaxAge time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc AuthService, validator Validator, sessionMaxAge time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:       svc,
		sessionMaxAge: sessionMaxAge,
		BaseHandler:   BaseHandler{logger: logger, validator: validator},
	}
}

// RegisterRoutes registers all auth handler routes.
//
// "authMiddleware" authenticates the caller, "loginLimiter" throttles credential endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMiddleware, loginLimiter func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimiter).Post("/register", h.Register)
		r.With(loginLimiter).Post("/login", h.Login)
		r.With(loginLimiter).Post("/admin", h.AdminLogin)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/", h.Profile)
			r.Post("/logout", h.Logout)
			r.Get("/admin", h.CheckElevated)
			r.With(authmw.RequirePolicy(policy.OpGrantRole)).Post("/make-admin", h.MakeAdmin)
			r.With(authmw.RequirePolicy(policy.OpGrantRole)).Post("/make-owner", h.MakeOwner)
		})
	})
}

// Register handles POST /api/auth/register
// @Summary Register a new user
// @Description Register a new user with username, email, password and an optional profile image
// @Tags auth
// @Accept multipart/form-data
// @Produce json
// @Param username formData string true "Username, at most 20 characters"
// @Param email formData string true "User email"
// @Param password formData string true "Password, at least 8 characters"
// @Param confirmPassword formData string true "Password confirmation"
// @Param image formData file false "Profile image"
// @Success 200 {object} map[string]string "Registration successful"
// @Failure 400 {object} map[string]map[string]string "Per-field validation errors"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to parse request")
		return
	}

	req := &models.RegisterRequest{
		Username:        r.FormValue("username"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}
	if !h.validate(w, req) {
		return
	}

	image, closeImage, err := formFile(r, "image")
	if err != nil {
		h.logger.Error("failed to get image from form", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "failed to process image")
		return
	}
	defer closeImage()

	if _, err := h.service.Register(r.Context(), req, image); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			h.respondFieldErrors(w, validation.FieldErrors{"email": "is already taken"})
			return
		}
		h.logger.Error("failed to register user", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Registration successful"})
}

// Login handles POST /api/auth/login
// @Summary Login user
// @Description Authenticate with email and password. The session token is returned as an HTTP-only cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login request"
// @Success 200 {object} map[string]string "Login successful"
// @Failure 400 {object} map[string]string "Invalid entry"
// @Failure 401 {object} map[string]string "Invalid entry"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogin(w, r)
	if !ok {
		return
	}

	token, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.respondLoginError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

// AdminLogin handles POST /api/auth/admin
// @Summary Elevated admin login
// @Description Authenticate an ADMIN user and issue an elevated session token as an HTTP-only cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login request"
// @Success 200 {object} map[string]string "Login successful"
// @Failure 400 {object} map[string]string "Invalid entry"
// @Failure 401 {object} map[string]string "Invalid entry"
// @Failure 403 {object} map[string]string "Not an admin"
// @Router /api/auth/admin [post]
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogin(w, r)
	if !ok {
		return
	}

	token, err := h.service.AdminLogin(r.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrNotAdmin) {
			h.respondError(w, http.StatusForbidden, "Access denied")
			return
		}
		h.respondLoginError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

// CheckElevated handles GET /api/auth/admin
// @Summary Check elevated session
// @Description Reports whether the current session was issued by the admin login
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/auth/admin [get]
func (h *AuthHandler) CheckElevated(w http.ResponseWriter, r *http.Request) {
	identity, ok := authmw.GetIdentity(r.Context())
	if !ok || !identity.Elevated {
		h.respondError(w, http.StatusForbidden, "Access denied")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]bool{"elevated": true})
}

// Logout handles POST /api/auth/logout
// @Summary Logout user
// @Description Clears the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Profile handles GET /api/auth
// @Summary Get current user
// @Description Get the profile of the authenticated user
// @Tags auth
// @Produce json
// @Success 200 {object} models.UserProfileResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/auth [get]
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, _ := authmw.GetIdentity(r.Context())
	if !policy.Evaluate(identity, policy.OpViewProfile, 0) {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			h.respondError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to get profile", zap.Int("user_id", identity.UserID), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondJSON(w, http.StatusOK, profile)
}

// MakeAdmin handles POST /api/auth/make-admin
// @Summary Grant ADMIN role
// @Description Grant the ADMIN role to the user with the given email. Requires OWNER.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.PermissionRequest true "Target user"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Invalid credentials"
// @Failure 403 {object} map[string]string
// @Router /api/auth/make-admin [post]
func (h *AuthHandler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	h.grantRole(w, r, policy.RoleAdmin)
}

// MakeOwner handles POST /api/auth/make-owner
// @Summary Grant OWNER role
// @Description Grant the OWNER role to the user with the given email. Requires OWNER.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.PermissionRequest true "Target user"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Invalid credentials"
// @Failure 403 {object} map[string]string
// @Router /api/auth/make-owner [post]
func (h *AuthHandler) MakeOwner(w http.ResponseWriter, r *http.Request) {
	h.grantRole(w, r, policy.RoleOwner)
}

func (h *AuthHandler) grantRole(w http.ResponseWriter, r *http.Request, role policy.Role) {
	var req models.PermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || h.validator.Validate(&req) != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	if err := h.service.GrantRole(r.Context(), req.Email, role); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			h.respondError(w, http.StatusBadRequest, "Invalid credentials")
			return
		}
		h.logger.Error("failed to grant role", zap.String("role", string(role)), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Role granted"})
}

// decodeLogin reads and validates a login body, writing 400 "Invalid entry" on failure
func (h *AuthHandler) decodeLogin(w http.ResponseWriter, r *http.Request) (*models.LoginRequest, bool) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || h.validator.Validate(&req) != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid entry")
		return nil, false
	}
	return &req, true
}

func (h *AuthHandler) respondLoginError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrInvalidCredentials) {
		h.respondError(w, http.StatusUnauthorized, "Invalid entry")
		return
	}
	h.logger.Error("failed to login user", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "internal server error")
}

// setSessionCookie sets the session token as an HTTP-only cookie usable from a cross-site frontend
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
