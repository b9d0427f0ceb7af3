package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/blogbackend/backend/internal/models"
	"github.com/blogbackend/backend/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

// UserRepository is the interface that wraps methods for Users table data access
type UserRepository interface {
	// Method Create inserts a new user together with its roles.
	//
	// "user" parameter is the user to create, its ID is set on success.
	//
	// If the email is already registered, ErrEmailTaken is returned.
	Create(ctx context.Context, user *models.User) error
	// Method GetByEmail retrieves a user with its roles by email.
	//
	// If user with such email does not exist, ErrUserNotFound is returned together with "nil" value.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Method GetByID retrieves a user with its roles by ID.
	//
	// If user with such ID does not exist, ErrUserNotFound is returned together with "nil" value.
	GetByID(ctx context.Context, id int) (*models.User, error)
	// Method ExistsByEmail checks if a user with such email exists.
	//
	// If some error occurs during check, the error will be returned together with "false" value.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Method AddRole grants a role to a user. Granting a role twice is a no-op.
	AddRole(ctx context.Context, userID int, role policy.Role) error
}

// BlobStore is the interface that wraps methods for uploaded file storage
type BlobStore interface {
	// Method Save writes the content of "r" under "name".
	Save(ctx context.Context, name string, r io.Reader) error
	// Method Delete removes the blob. Removing a missing blob is not an error.
	Delete(name string) error
}

// TokenIssuer issues session tokens for an identity
type TokenIssuer interface {
	Issue(identity policy.Identity) (string, error)
}

// authService implements registration, login and role management
type authService struct {
	users      UserRepository
	blobs      BlobStore
	tokens     TokenIssuer
	ownerEmail string
	logger     *zap.Logger
}

// NewAuthService creates a new auth service.
//
// "ownerEmail" names the bootstrap owner account, empty disables the bootstrap.
func NewAuthService(users UserRepository, blobs BlobStore, tokens TokenIssuer, ownerEmail string, logger *zap.Logger) *authService {
	return &authService{
		users:      users,
		blobs:      blobs,
		tokens:     tokens,
		ownerEmail: strings.TrimSpace(ownerEmail),
		logger:     logger,
	}
}

// ownerRoles are granted to the bootstrap owner account
var ownerRoles = []policy.Role{policy.RoleAdmin, policy.RoleOwner}

func (s *authService) isOwnerEmail(email string) bool {
	return s.ownerEmail != "" && strings.EqualFold(email, s.ownerEmail)
}

// EnsureOwner grants ADMIN and OWNER to the bootstrap owner account if it is registered.
//
// An owner that has not registered yet gets the roles at registration instead.
func (s *authService) EnsureOwner(ctx context.Context) error {
	if s.ownerEmail == "" {
		return nil
	}

	user, err := s.users.GetByEmail(ctx, s.ownerEmail)
	if errors.Is(err, models.ErrUserNotFound) {
		s.logger.Info("owner account not registered yet", zap.String("email", s.ownerEmail))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up owner account: %w", err)
	}

	for _, role := range ownerRoles {
		if err := s.users.AddRole(ctx, user.ID, role); err != nil {
			return fmt.Errorf("failed to grant %s to owner account: %w", role, err)
		}
	}

	s.logger.Info("owner account ensured", zap.Int("user_id", user.ID))
	return nil
}

// Register creates a new user with the USER role. The bootstrap owner account also gets ADMIN and OWNER.
//
// The profile image upload and the email check run concurrently; a stored image is removed
// when registration fails afterwards. Without an image the default profile image is referenced.
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest, image *models.Upload) (*models.User, error) {
	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)

	profileImage := models.DefaultProfileImage
	if image != nil {
		profileImage = storage.GenerateFileName(image.Filename)
	}

	var exists bool
	var g errgroup.Group
	if image != nil {
		g.Go(func() error {
			if err := s.blobs.Save(ctx, profileImage, image.Content); err != nil {
				return fmt.Errorf("failed to save profile image: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		exists, err = s.users.ExistsByEmail(ctx, email)
		return err
	})

	if err := g.Wait(); err != nil {
		s.removeBlob(image, profileImage)
		s.logger.Error("failed to register user", zap.Error(err))
		return nil, err
	}
	if exists {
		s.removeBlob(image, profileImage)
		return nil, models.ErrEmailTaken
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.removeBlob(image, profileImage)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		ProfileImage: profileImage,
		Roles:        []policy.Role{policy.RoleUser},
	}
	if s.isOwnerEmail(email) {
		user.Roles = append(user.Roles, ownerRoles...)
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.removeBlob(image, profileImage)
		if !errors.Is(err, models.ErrEmailTaken) {
			s.logger.Error("failed to create user", zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Int("user_id", user.ID))
	return user, nil
}

// Login verifies the credentials and issues a standard session token.
//
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (string, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return "", err
	}

	return s.tokens.Issue(policy.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  user.Roles,
	})
}

// AdminLogin verifies the credentials and issues an elevated session token to ADMIN users.
//
// Valid credentials of a user without ADMIN yield ErrNotAdmin.
func (s *authService) AdminLogin(ctx context.Context, req *models.LoginRequest) (string, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return "", err
	}

	identity := policy.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Roles:    user.Roles,
		Elevated: true,
	}
	if !policy.Evaluate(&identity, policy.OpElevatedLogin, 0) {
		s.logger.Warn("elevated login denied", zap.Int("user_id", user.ID))
		return "", models.ErrNotAdmin
	}

	return s.tokens.Issue(identity)
}

// GetProfile retrieves the public profile of a user
func (s *authService) GetProfile(ctx context.Context, userID int) (*models.UserProfileResponse, error) {
	if userID <= 0 {
		return nil, models.ErrUserNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.UserProfileResponse{
		Username:     user.Username,
		Email:        user.Email,
		ProfileImage: user.ProfileImage,
	}, nil
}

// GrantRole adds role to the user registered with email
func (s *authService) GrantRole(ctx context.Context, email string, role policy.Role) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}

	if err := s.users.AddRole(ctx, user.ID, role); err != nil {
		s.logger.Error("failed to grant role", zap.Int("user_id", user.ID), zap.String("role", string(role)), zap.Error(err))
		return err
	}

	s.logger.Info("role granted", zap.Int("user_id", user.ID), zap.String("role", string(role)))
	return nil
}

func (s *authService) authenticate(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}

// removeBlob deletes an uploaded image after a failed operation
func (s *authService) removeBlob(image *models.Upload, name string) {
	if image == nil {
		return
	}
	if err := s.blobs.Delete(name); err != nil {
		s.logger.Warn("failed to remove uploaded file", zap.String("name", name), zap.Error(err))
	}
}
