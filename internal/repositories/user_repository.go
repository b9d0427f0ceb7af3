package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/blogbackend/backend/internal/models"
	"go.uber.org/zap"
)

// userRepository implements the user repository
type userRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *userRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the user together with its roles and sets user.ID
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO users (username, email, password_hash, profile_image)
			VALUES (?, ?, ?, ?)
		`
		result, err := tx.ExecContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.ProfileImage)
		if err != nil {
			if isDuplicateEntry(err) {
				return models.ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		user.ID = int(id)

		for _, role := range user.Roles {
			if err := insertRole(ctx, tx, user.ID, role); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByEmail retrieves a user with its roles by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT id, username, email, password_hash, profile_image FROM users WHERE email = ?"
	return r.getOne(ctx, query, email)
}

// GetByID retrieves a user with its roles by id
func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := "SELECT id, username, email, password_hash, profile_image FROM users WHERE id = ?"
	return r.getOne(ctx, query, id)
}

// ExistsByEmail checks whether a user with this email is registered
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// AddRole grants role to the user. Granting a role the user already has is a no-op.
func (r *userRepository) AddRole(ctx context.Context, userID int, role policy.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	return insertRole(ctx, r.db, userID, role)
}

// GetRoles retrieves the roles of a user ordered by name
func (r *userRepository) GetRoles(ctx context.Context, userID int) ([]policy.Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT role FROM user_roles WHERE user_id = ? ORDER BY role ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}

	roles := policy.ParseRoles(names)
	if len(roles) != len(names) {
		r.logger.Warn("ignoring unknown roles",
			zap.Int("user_id", userID),
			zap.Strings("stored", names),
		)
	}
	return roles, nil
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.ProfileImage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.Roles, err = r.GetRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func insertRole(ctx context.Context, q Querier, userID int, role policy.Role) error {
	if _, err := q.ExecContext(ctx, "INSERT IGNORE INTO user_roles (user_id, role) VALUES (?, ?)", userID, string(role)); err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	return nil
}
