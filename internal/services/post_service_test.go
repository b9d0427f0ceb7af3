package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/blogbackend/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testUser  = policy.Identity{UserID: 5, Email: "user@example.com", Roles: []policy.Role{policy.RoleUser}}
	testAdmin = policy.Identity{UserID: 1, Email: "admin@example.com", Roles: []policy.Role{policy.RoleUser, policy.RoleAdmin}}
)

func newTestPostService(posts *mockPostRepository, tags *mockTagRepository, blobs *mockBlobStore) *postService {
	logger, _ := zap.NewDevelopment()
	return NewPostService(posts, tags, blobs, logger)
}

func newPostRequest() *models.PostRequest {
	return &models.PostRequest{
		Title:    " Title ",
		Body:     "text",
		Category: "news",
		Tags:     []string{"go", "sql"},
	}
}

func TestNewPostService(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	posts := &mockPostRepository{}
	tags := &mockTagRepository{}
	blobs := newMockBlobStore()

	svc := NewPostService(posts, tags, blobs, logger)

	assert.NotNil(t, svc)
	assert.Equal(t, posts, svc.posts)
	assert.Equal(t, tags, svc.tags)
	assert.Equal(t, logger, svc.logger)
}

func TestPostService_List(t *testing.T) {
	tests := []struct {
		name          string
		repo          *mockPostRepository
		expectedError bool
		expectedCount int
	}{
		{
			name:          "success",
			repo:          &mockPostRepository{posts: []models.Post{{ID: 1}, {ID: 2}}},
			expectedCount: 2,
		},
		{
			name:          "repository error",
			repo:          &mockPostRepository{err: errDatabase},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestPostService(tt.repo, &mockTagRepository{}, newMockBlobStore())

			posts, err := svc.List(context.Background())

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, posts)
			} else {
				require.NoError(t, err)
				assert.Len(t, posts, tt.expectedCount)
			}
		})
	}
}

func TestPostService_Get(t *testing.T) {
	svc := newTestPostService(&mockPostRepository{post: &models.Post{ID: 3, Title: "Title"}}, &mockTagRepository{}, newMockBlobStore())

	post, err := svc.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, post.ID)

	_, err = svc.Get(context.Background(), -1)
	assert.ErrorIs(t, err, models.ErrPostNotFound)
}

func TestPostService_ListTags(t *testing.T) {
	tags := &mockTagRepository{tags: []models.Tag{{ID: 1, Name: "go"}}}
	svc := newTestPostService(&mockPostRepository{}, tags, newMockBlobStore())

	result, err := svc.ListTags(context.Background())

	require.NoError(t, err)
	assert.Equal(t, tags.tags, result)
}

func TestPostService_PruneTags(t *testing.T) {
	tests := []struct {
		name          string
		actor         policy.Identity
		tags          *mockTagRepository
		expected      int64
		expectedError error
	}{
		{name: "admin prunes", actor: testAdmin, tags: &mockTagRepository{removed: 3}, expected: 3},
		{name: "user is forbidden", actor: testUser, tags: &mockTagRepository{removed: 3}, expectedError: models.ErrForbidden},
		{name: "repository error", actor: testAdmin, tags: &mockTagRepository{err: errDatabase}, expectedError: errDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestPostService(&mockPostRepository{}, tt.tags, newMockBlobStore())

			removed, err := svc.PruneTags(context.Background(), tt.actor)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Zero(t, removed)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, removed)
			}
		})
	}
}

func TestPostService_Create(t *testing.T) {
	tests := []struct {
		name          string
		actor         policy.Identity
		repo          *mockPostRepository
		withCover     bool
		saveErr       error
		expectedError error
		expectedBlobs int
	}{
		{
			name:          "success with cover",
			actor:         testUser,
			repo:          &mockPostRepository{},
			withCover:     true,
			expectedBlobs: 1,
		},
		{
			name:  "success without cover",
			actor: testUser,
			repo:  &mockPostRepository{},
		},
		{
			name:          "duplicate title removes cover",
			actor:         testUser,
			repo:          &mockPostRepository{post: &models.Post{ID: 9, Title: "Title"}},
			withCover:     true,
			expectedError: models.ErrDuplicateTitle,
		},
		{
			name:          "duplicate detected by repository removes cover",
			actor:         testUser,
			repo:          &mockPostRepository{createErr: models.ErrDuplicateTitle},
			withCover:     true,
			expectedError: models.ErrDuplicateTitle,
		},
		{
			name:          "lookup failure",
			actor:         testUser,
			repo:          &mockPostRepository{getErr: errDatabase},
			withCover:     true,
			expectedError: errDatabase,
		},
		{
			name:          "anonymous is forbidden",
			actor:         policy.Identity{},
			repo:          &mockPostRepository{},
			expectedError: models.ErrForbidden,
		},
		{
			name:          "upload failure",
			actor:         testUser,
			repo:          &mockPostRepository{},
			withCover:     true,
			saveErr:       errors.New("disk full"),
			expectedError: errors.New("failed to save cover image"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := newMockBlobStore()
			blobs.saveErr = tt.saveErr
			svc := newTestPostService(tt.repo, &mockTagRepository{}, blobs)

			var cover *models.Upload
			if tt.withCover {
				cover = &models.Upload{Filename: "cover.png", Content: strings.NewReader("png")}
			}

			post, err := svc.Create(context.Background(), tt.actor, newPostRequest(), cover)

			if tt.expectedError != nil {
				require.Error(t, err)
				if tt.saveErr != nil {
					assert.Contains(t, err.Error(), tt.expectedError.Error())
				} else {
					assert.ErrorIs(t, err, tt.expectedError)
				}
				assert.Nil(t, post)
				assert.Nil(t, tt.repo.created)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Title", post.Title)
				assert.Equal(t, testUser.UserID, post.UserID)
				assert.Equal(t, []string{"go", "sql"}, tt.repo.tagNames)
				if tt.withCover {
					assert.True(t, strings.HasSuffix(post.CoverImage, "cover.png"))
				} else {
					assert.Empty(t, post.CoverImage)
				}
			}
			assert.Equal(t, tt.expectedBlobs, blobs.count())
		})
	}
}

func TestPostService_Update(t *testing.T) {
	existing := &models.Post{ID: 7, Title: "Old", UserID: testUser.UserID, CoverImage: "old.png"}

	tests := []struct {
		name            string
		repo            *mockPostRepository
		withCover       bool
		expectedError   error
		expectedDeleted []string
		expectedCover   string
	}{
		{
			name:            "new cover replaces previous",
			repo:            &mockPostRepository{post: existing, previous: "old.png"},
			withCover:       true,
			expectedDeleted: []string{"old.png"},
		},
		{
			name:          "no cover keeps previous",
			repo:          &mockPostRepository{post: existing, previous: "old.png"},
			expectedCover: "old.png",
		},
		{
			name:          "missing post removes new cover",
			repo:          &mockPostRepository{},
			withCover:     true,
			expectedError: models.ErrPostNotFound,
		},
		{
			name:          "forbidden removes new cover and keeps previous",
			repo:          &mockPostRepository{post: existing, previous: "old.png", updateErr: models.ErrForbidden},
			withCover:     true,
			expectedError: models.ErrForbidden,
		},
		{
			name:          "forbidden without cover deletes nothing",
			repo:          &mockPostRepository{post: existing, previous: "old.png", updateErr: models.ErrForbidden},
			expectedError: models.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := newMockBlobStore()
			svc := newTestPostService(tt.repo, &mockTagRepository{}, blobs)

			var cover *models.Upload
			if tt.withCover {
				cover = &models.Upload{Filename: "new.png", Content: strings.NewReader("png")}
			}

			post, err := svc.Update(context.Background(), testUser, 7, newPostRequest(), cover, false)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, post)
				assert.Zero(t, blobs.count())
				for _, name := range blobs.deleted {
					assert.NotEqual(t, "old.png", name)
				}
				if !tt.withCover {
					assert.Empty(t, blobs.deleted)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 7, post.ID)
			if tt.withCover {
				assert.True(t, strings.HasSuffix(post.CoverImage, "new.png"))
				assert.Equal(t, 1, blobs.count())
			} else {
				assert.Equal(t, tt.expectedCover, post.CoverImage)
			}
			if tt.expectedDeleted != nil {
				assert.Equal(t, tt.expectedDeleted, blobs.deleted)
			} else {
				assert.Empty(t, blobs.deleted)
			}
		})
	}
}

func TestPostService_Delete(t *testing.T) {
	tests := []struct {
		name            string
		repo            *mockPostRepository
		expectedError   error
		expectedDeleted []string
	}{
		{
			name:            "removes cover",
			repo:            &mockPostRepository{previous: "cover.png"},
			expectedDeleted: []string{"cover.png"},
		},
		{
			name: "post without cover",
			repo: &mockPostRepository{},
		},
		{
			name:          "not found",
			repo:          &mockPostRepository{deleteErr: models.ErrPostNotFound},
			expectedError: models.ErrPostNotFound,
		},
		{
			name:          "forbidden",
			repo:          &mockPostRepository{previous: "cover.png", deleteErr: models.ErrForbidden},
			expectedError: models.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := newMockBlobStore()
			svc := newTestPostService(tt.repo, &mockTagRepository{}, blobs)

			err := svc.Delete(context.Background(), testUser, 7, false)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, blobs.deleted)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedDeleted, blobs.deleted)
			}
		})
	}
}
