package validation

import (
	"errors"
	"testing"

	"github.com/blogbackend/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_RegisterRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name           string
		req            models.RegisterRequest
		expectedFields []string
	}{
		{
			name: "valid",
			req: models.RegisterRequest{
				Username:        "writer",
				Email:           "writer@example.com",
				Password:        "longenough",
				ConfirmPassword: "longenough",
			},
		},
		{
			name: "passwords don't match",
			req: models.RegisterRequest{
				Username:        "writer",
				Email:           "writer@example.com",
				Password:        "longenough",
				ConfirmPassword: "different1",
			},
			expectedFields: []string{"confirmPassword"},
		},
		{
			name: "everything wrong",
			req: models.RegisterRequest{
				Username: "a-username-that-is-way-too-long",
				Email:    "not-an-email",
				Password: "short",
			},
			expectedFields: []string{"username", "email", "password", "confirmPassword"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)

			if len(tt.expectedFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var fieldErrors FieldErrors
			require.True(t, errors.As(err, &fieldErrors))
			assert.Len(t, fieldErrors, len(tt.expectedFields))
			for _, field := range tt.expectedFields {
				assert.Contains(t, fieldErrors, field)
			}
		})
	}
}

func TestValidator_PostRequest(t *testing.T) {
	v := New()

	err := v.Validate(models.PostRequest{
		Title:    "This title is definitely longer than thirty characters",
		Body:     "",
		Category: "tech",
		Tags:     []string{"go"},
	})

	var fieldErrors FieldErrors
	require.True(t, errors.As(err, &fieldErrors))
	assert.Equal(t, "is too long, maximum length is 30", fieldErrors["title"])
	assert.Equal(t, "cannot be blank", fieldErrors["text"])
	assert.NotContains(t, fieldErrors, "category")
}

func TestValidator_LoginRequest(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(models.LoginRequest{Email: "a@example.com", Password: "x"}))
	assert.Error(t, v.Validate(models.LoginRequest{Email: "", Password: "x"}))
	assert.Error(t, v.Validate(models.LoginRequest{Email: "a@example.com"}))
}

func TestValidator_WhitespaceOnlyFields(t *testing.T) {
	v := New()

	t.Run("post", func(t *testing.T) {
		err := v.Validate(models.PostRequest{Title: "   ", Body: "  ", Category: " \t"})

		var fieldErrors FieldErrors
		require.True(t, errors.As(err, &fieldErrors))
		assert.Equal(t, FieldErrors{
			"title":    "cannot be blank",
			"text":     "cannot be blank",
			"category": "cannot be blank",
		}, fieldErrors)
	})

	t.Run("register", func(t *testing.T) {
		err := v.Validate(models.RegisterRequest{
			Username:        "   ",
			Email:           "writer@example.com",
			Password:        "longenough",
			ConfirmPassword: "longenough",
		})

		var fieldErrors FieldErrors
		require.True(t, errors.As(err, &fieldErrors))
		assert.Equal(t, FieldErrors{"username": "cannot be blank"}, fieldErrors)
	})

	t.Run("surrounding whitespace is allowed", func(t *testing.T) {
		assert.NoError(t, v.Validate(models.PostRequest{Title: " Intro ", Body: "text", Category: "go"}))
	})
}
