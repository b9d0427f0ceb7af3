package models

import "github.com/blogbackend/backend/internal/auth/policy"

// DefaultProfileImage is referenced by users who registered without an image
const DefaultProfileImage = "default-profile.png"

// User represents a registered user
type User struct {
	ID           int           `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"` // Never serialize password hash
	ProfileImage string        `json:"profileImage"`
	Roles        []policy.Role `json:"roles"`
}

// RegisterRequest represents the multipart registration form
type RegisterRequest struct {
	Username        string `form:"username" validate:"required,notblank,max=20"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=8"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginRequest represents a login request for both the standard and the elevated flow
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PermissionRequest names the user that receives an elevated role
type PermissionRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UserProfileResponse is the public view of the current user
type UserProfileResponse struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage"`
}
