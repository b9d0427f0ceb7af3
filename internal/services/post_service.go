package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/blogbackend/backend/internal/models"
	"github.com/blogbackend/backend/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PostRepository is the interface that wraps methods for Posts and PostTags tables data access
type PostRepository interface {
	// Method List retrieves all posts with their tag names.
	List(ctx context.Context) ([]models.Post, error)
	// Method ListByTag retrieves the posts associated with the tag named "tagName".
	//
	// An unknown tag yields an empty slice.
	ListByTag(ctx context.Context, tagName string) ([]models.Post, error)
	// Method GetByID retrieves a post by its ID.
	//
	// If post with such ID does not exist, ErrPostNotFound is returned together with "nil" value.
	GetByID(ctx context.Context, id int) (*models.Post, error)
	// Method GetByTitle retrieves a post by its exact title.
	//
	// If post with such title does not exist, ErrPostNotFound is returned together with "nil" value.
	GetByTitle(ctx context.Context, title string) (*models.Post, error)
	// Method Create inserts a post and associates it with "tagNames", creating missing tags.
	//
	// If the title is taken, ErrDuplicateTitle is returned and nothing is written.
	Create(ctx context.Context, post *models.Post, tagNames []string) error
	// Method Update replaces the post fields and its tag set.
	//
	// "actor" parameter is checked against the owner of the post unless "privileged" is set,
	// in which case the actor must be an admin. ErrPostNotFound and ErrForbidden are distinct.
	// The cover image name stored before the update is returned.
	Update(ctx context.Context, id int, post *models.Post, tagNames []string, actor policy.Identity, privileged bool) (string, error)
	// Method Delete removes a post with its tag associations and returns its cover image name.
	//
	// Please reference Update method for more information about "actor" and "privileged" parameters.
	Delete(ctx context.Context, id int, actor policy.Identity, privileged bool) (string, error)
}

// TagRepository is the interface that wraps methods for Tags table data access
type TagRepository interface {
	// Method ListAll retrieves all tags ordered by name.
	ListAll(ctx context.Context) ([]models.Tag, error)
	// Method PruneOrphans deletes tags that no post references and returns how many were removed.
	PruneOrphans(ctx context.Context) (int64, error)
}

// postService implements post management
type postService struct {
	posts  PostRepository
	tags   TagRepository
	blobs  BlobStore
	logger *zap.Logger
}

// NewPostService creates a new post service
func NewPostService(posts PostRepository, tags TagRepository, blobs BlobStore, logger *zap.Logger) *postService {
	return &postService{
		posts:  posts,
		tags:   tags,
		blobs:  blobs,
		logger: logger,
	}
}

// List retrieves all posts
func (s *postService) List(ctx context.Context) ([]models.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		s.logger.Error("failed to list posts", zap.Error(err))
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// Get retrieves a single post
func (s *postService) Get(ctx context.Context, id int) (*models.Post, error) {
	if id <= 0 {
		return nil, models.ErrPostNotFound
	}
	return s.posts.GetByID(ctx, id)
}

// ListByTag retrieves the posts carrying the tag
func (s *postService) ListByTag(ctx context.Context, tagName string) ([]models.Post, error) {
	posts, err := s.posts.ListByTag(ctx, strings.TrimSpace(tagName))
	if err != nil {
		s.logger.Error("failed to list posts by tag", zap.String("tag", tagName), zap.Error(err))
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// ListTags retrieves all tags
func (s *postService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to list tags", zap.Error(err))
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// PruneTags removes tags no post references
func (s *postService) PruneTags(ctx context.Context, actor policy.Identity) (int64, error) {
	if !policy.Evaluate(&actor, policy.OpManageTags, 0) {
		return 0, models.ErrForbidden
	}

	removed, err := s.tags.PruneOrphans(ctx)
	if err != nil {
		s.logger.Error("failed to prune tags", zap.Error(err))
		return 0, err
	}

	s.logger.Info("orphan tags pruned", zap.Int64("removed", removed), zap.Int("user_id", actor.UserID))
	return removed, nil
}

// Create stores a new post owned by actor.
//
// The cover upload and the duplicate title check run concurrently. A stored cover is removed
// when the post is not created.
func (s *postService) Create(ctx context.Context, actor policy.Identity, req *models.PostRequest, cover *models.Upload) (*models.Post, error) {
	if !policy.Evaluate(&actor, policy.OpCreatePost, 0) {
		return nil, models.ErrForbidden
	}

	post := newPost(req)
	post.UserID = actor.UserID

	var g errgroup.Group
	s.saveCover(ctx, &g, post, cover)
	g.Go(func() error {
		_, err := s.posts.GetByTitle(ctx, post.Title)
		if err == nil {
			return models.ErrDuplicateTitle
		}
		if errors.Is(err, models.ErrPostNotFound) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		s.removeCover(post.CoverImage)
		return nil, s.logFailure("create", err)
	}

	if err := s.posts.Create(ctx, post, req.Tags); err != nil {
		s.removeCover(post.CoverImage)
		return nil, s.logFailure("create", err)
	}

	s.logger.Info("post created", zap.Int("post_id", post.ID), zap.Int("user_id", actor.UserID))
	return post, nil
}

// Update replaces a post and its tag set.
//
// Without "privileged" only the owner may update and the post stays owned by actor.
// With "privileged" an admin may update any post and the owner is kept. A new cover
// replaces the previous one, which is removed after the update succeeds.
func (s *postService) Update(ctx context.Context, actor policy.Identity, id int, req *models.PostRequest, cover *models.Upload, privileged bool) (*models.Post, error) {
	if id <= 0 {
		return nil, models.ErrPostNotFound
	}

	post := newPost(req)

	var g errgroup.Group
	s.saveCover(ctx, &g, post, cover)
	g.Go(func() error {
		_, err := s.posts.GetByID(ctx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		s.removeCover(post.CoverImage)
		return nil, s.logFailure("update", err)
	}

	previous, err := s.posts.Update(ctx, id, post, req.Tags, actor, privileged)
	if err != nil {
		if cover != nil {
			s.removeCover(post.CoverImage)
		}
		return nil, s.logFailure("update", err)
	}

	if cover != nil && previous != "" && previous != post.CoverImage {
		s.removeCover(previous)
	}

	s.logger.Info("post updated", zap.Int("post_id", id), zap.Int("user_id", actor.UserID), zap.Bool("privileged", privileged))
	return post, nil
}

// Delete removes a post and its cover image
//
// Please reference Update method for more information about "privileged" parameter.
func (s *postService) Delete(ctx context.Context, actor policy.Identity, id int, privileged bool) error {
	if id <= 0 {
		return models.ErrPostNotFound
	}

	cover, err := s.posts.Delete(ctx, id, actor, privileged)
	if err != nil {
		return s.logFailure("delete", err)
	}

	if cover != "" {
		s.removeCover(cover)
	}

	s.logger.Info("post deleted", zap.Int("post_id", id), zap.Int("user_id", actor.UserID), zap.Bool("privileged", privileged))
	return nil
}

func newPost(req *models.PostRequest) *models.Post {
	return &models.Post{
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
		Category: strings.TrimSpace(req.Category),
	}
}

// saveCover schedules the cover upload on g and sets the generated name on post
func (s *postService) saveCover(ctx context.Context, g *errgroup.Group, post *models.Post, cover *models.Upload) {
	if cover == nil {
		return
	}

	post.CoverImage = storage.GenerateFileName(cover.Filename)
	name := post.CoverImage
	g.Go(func() error {
		if err := s.blobs.Save(ctx, name, cover.Content); err != nil {
			return fmt.Errorf("failed to save cover image: %w", err)
		}
		return nil
	})
}

func (s *postService) removeCover(name string) {
	if name == "" {
		return
	}
	if err := s.blobs.Delete(name); err != nil {
		s.logger.Warn("failed to remove cover image", zap.String("name", name), zap.Error(err))
	}
}

// logFailure logs unexpected errors and passes every error through
func (s *postService) logFailure(op string, err error) error {
	switch {
	case errors.Is(err, models.ErrPostNotFound),
		errors.Is(err, models.ErrForbidden),
		errors.Is(err, models.ErrDuplicateTitle):
	default:
		s.logger.Error("post operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}
