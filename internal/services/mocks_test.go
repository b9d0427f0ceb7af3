package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/blogbackend/backend/internal/models"
)

// mockBlobStore keeps blobs in memory
type mockBlobStore struct {
	mu      sync.Mutex
	blobs   map[string]string
	deleted []string
	saveErr error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{blobs: make(map[string]string)}
}

func (m *mockBlobStore) Save(ctx context.Context, name string, r io.Reader) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = string(content)
	return nil
}

func (m *mockBlobStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *mockBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// mockUserRepository is a mock implementation of UserRepository
type mockUserRepository struct {
	users     map[string]*models.User
	nextID    int
	err       error
	createErr error
	granted   []policy.Role
}

func newMockUserRepository(users ...*models.User) *mockUserRepository {
	m := &mockUserRepository{users: make(map[string]*models.User), nextID: 1}
	for _, u := range users {
		m.users[u.Email] = u
		if u.ID >= m.nextID {
			m.nextID = u.ID + 1
		}
	}
	return m
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[user.Email]; ok {
		return models.ErrEmailTaken
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	user, ok := m.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.users[email]
	return ok, nil
}

func (m *mockUserRepository) AddRole(ctx context.Context, userID int, role policy.Role) error {
	if m.err != nil {
		return m.err
	}
	m.granted = append(m.granted, role)
	return nil
}

// mockTokenIssuer records the identities it issued tokens for
type mockTokenIssuer struct {
	issued []policy.Identity
}

func (m *mockTokenIssuer) Issue(identity policy.Identity) (string, error) {
	m.issued = append(m.issued, identity)
	return "token", nil
}

// mockPostRepository is a mock implementation of PostRepository
type mockPostRepository struct {
	posts     []models.Post
	post      *models.Post
	err       error
	getErr    error
	createErr error
	updateErr error
	deleteErr error
	previous  string
	created   *models.Post
	tagNames  []string
}

func (m *mockPostRepository) List(ctx context.Context) ([]models.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.posts, nil
}

func (m *mockPostRepository) ListByTag(ctx context.Context, tagName string) ([]models.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.posts, nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, id int) (*models.Post, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.post == nil {
		return nil, models.ErrPostNotFound
	}
	return m.post, nil
}

func (m *mockPostRepository) GetByTitle(ctx context.Context, title string) (*models.Post, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.post == nil || m.post.Title != title {
		return nil, models.ErrPostNotFound
	}
	return m.post, nil
}

func (m *mockPostRepository) Create(ctx context.Context, post *models.Post, tagNames []string) error {
	if m.createErr != nil {
		return m.createErr
	}
	post.ID = 1
	post.Tags = tagNames
	m.created = post
	m.tagNames = tagNames
	return nil
}

func (m *mockPostRepository) Update(ctx context.Context, id int, post *models.Post, tagNames []string, actor policy.Identity, privileged bool) (string, error) {
	if m.updateErr != nil {
		return "", m.updateErr
	}
	post.ID = id
	post.Tags = tagNames
	if post.CoverImage == "" {
		post.CoverImage = m.previous
	}
	return m.previous, nil
}

func (m *mockPostRepository) Delete(ctx context.Context, id int, actor policy.Identity, privileged bool) (string, error) {
	if m.deleteErr != nil {
		return "", m.deleteErr
	}
	return m.previous, nil
}

// mockTagRepository is a mock implementation of TagRepository
type mockTagRepository struct {
	tags    []models.Tag
	removed int64
	err     error
}

func (m *mockTagRepository) ListAll(ctx context.Context) ([]models.Tag, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tags, nil
}

func (m *mockTagRepository) PruneOrphans(ctx context.Context) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.removed, nil
}

var errDatabase = errors.New("database error")
