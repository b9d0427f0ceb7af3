package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/blogbackend/backend/internal/auth/policy"
	"github.com/blogbackend/backend/internal/models"
)

// TagRegistry resolves tag names to ids inside a caller-owned transaction
type TagRegistry interface {
	ResolveOrCreate(ctx context.Context, q Querier, names []string) (map[string]int, error)
}

// postRepository implements the post repository
type postRepository struct {
	db   *sql.DB
	tags TagRegistry
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *sql.DB, tags TagRegistry) *postRepository {
	return &postRepository{
		db:   db,
		tags: tags,
	}
}

const postColumns = "p.id, p.title, p.body, p.category, p.cover_image, p.user_id, p.created_at, p.updated_at"

// List retrieves all posts ordered by id
func (r *postRepository) List(ctx context.Context) ([]models.Post, error) {
	query := fmt.Sprintf("SELECT %s FROM posts p ORDER BY p.id ASC", postColumns)
	return r.queryPosts(ctx, query)
}

// ListByTag retrieves the posts associated with the tag of exactly this name.
// An unknown tag yields an empty list.
func (r *postRepository) ListByTag(ctx context.Context, tagName string) ([]models.Post, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM posts p
		JOIN post_tags pt ON pt.post_id = p.id
		JOIN tags t ON t.id = pt.tag_id
		WHERE t.name = ?
		ORDER BY p.id ASC
	`, postColumns)
	return r.queryPosts(ctx, query, tagName)
}

// GetByID retrieves a post by its id
func (r *postRepository) GetByID(ctx context.Context, id int) (*models.Post, error) {
	query := fmt.Sprintf("SELECT %s FROM posts p WHERE p.id = ?", postColumns)
	return r.getOne(ctx, query, id)
}

// GetByTitle retrieves a post by its exact title
func (r *postRepository) GetByTitle(ctx context.Context, title string) (*models.Post, error) {
	query := fmt.Sprintf("SELECT %s FROM posts p WHERE p.title = ?", postColumns)
	return r.getOne(ctx, query, title)
}

// Create inserts the post and its tag associations in one transaction.
// The duplicate title check runs before any tag is created.
func (r *postRepository) Create(ctx context.Context, post *models.Post, tagNames []string) error {
	names := NormalizeTagNames(tagNames)

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM posts WHERE title = ?)", post.Title).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check title: %w", err)
		}
		if exists {
			return models.ErrDuplicateTitle
		}

		tagIDs, err := r.tags.ResolveOrCreate(ctx, tx, names)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO posts (title, body, category, cover_image, user_id)
			VALUES (?, ?, ?, ?, ?)
		`
		result, err := tx.ExecContext(ctx, query, post.Title, post.Body, post.Category, nullString(post.CoverImage), post.UserID)
		if err != nil {
			if isDuplicateEntry(err) {
				return models.ErrDuplicateTitle
			}
			return fmt.Errorf("failed to create post: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		post.ID = int(id)

		return insertPostTags(ctx, tx, post.ID, names, tagIDs)
	})
	if err != nil {
		return err
	}

	post.Tags = names
	return nil
}

// Update replaces the post fields and its whole tag set in one transaction.
//
// The owner path requires actor to own the post and hands ownership to actor.
// The privileged path requires the admin policy and keeps the current owner.
// An empty CoverImage keeps the current cover. The cover name stored before the update is returned.
func (r *postRepository) Update(ctx context.Context, id int, post *models.Post, tagNames []string, actor policy.Identity, privileged bool) (string, error) {
	names := NormalizeTagNames(tagNames)
	op := policy.OpUpdateOwnPost
	if privileged {
		op = policy.OpUpdateAnyPost
	}

	var ownerID int
	var cover sql.NullString
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockPost(ctx, tx, id, &ownerID, &cover); err != nil {
			return err
		}
		if !policy.Evaluate(&actor, op, ownerID) {
			return models.ErrForbidden
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM post_tags WHERE post_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete post tags: %w", err)
		}

		tagIDs, err := r.tags.ResolveOrCreate(ctx, tx, names)
		if err != nil {
			return err
		}
		if err := insertPostTags(ctx, tx, id, names, tagIDs); err != nil {
			return err
		}

		var result sql.Result
		if privileged {
			query := `
				UPDATE posts
				SET title = ?, body = ?, category = ?, cover_image = COALESCE(?, cover_image)
				WHERE id = ?
			`
			result, err = tx.ExecContext(ctx, query, post.Title, post.Body, post.Category, nullString(post.CoverImage), id)
		} else {
			ownerID = actor.UserID
			query := `
				UPDATE posts
				SET title = ?, body = ?, category = ?, cover_image = COALESCE(?, cover_image), user_id = ?
				WHERE id = ?
			`
			result, err = tx.ExecContext(ctx, query, post.Title, post.Body, post.Category, nullString(post.CoverImage), ownerID, id)
		}
		if err != nil {
			if isDuplicateEntry(err) {
				return models.ErrDuplicateTitle
			}
			return fmt.Errorf("failed to update post: %w", err)
		}
		if _, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}

		if post.CoverImage == "" {
			post.CoverImage = cover.String
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	post.ID = id
	post.UserID = ownerID
	post.Tags = names
	return cover.String, nil
}

// Delete removes the post and its tag associations in one transaction
// and returns the cover image name of the removed post.
func (r *postRepository) Delete(ctx context.Context, id int, actor policy.Identity, privileged bool) (string, error) {
	op := policy.OpDeleteOwnPost
	if privileged {
		op = policy.OpDeleteAnyPost
	}

	var cover sql.NullString
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var ownerID int
		if err := lockPost(ctx, tx, id, &ownerID, &cover); err != nil {
			return err
		}
		if !policy.Evaluate(&actor, op, ownerID) {
			return models.ErrForbidden
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM post_tags WHERE post_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete post tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return cover.String, nil
}

// lockPost reads the owner and cover of a post and locks its row for the rest of the transaction
func lockPost(ctx context.Context, tx *sql.Tx, id int, ownerID *int, cover *sql.NullString) error {
	err := tx.QueryRowContext(ctx, "SELECT user_id, cover_image FROM posts WHERE id = ? FOR UPDATE", id).Scan(ownerID, cover)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock post: %w", err)
	}
	return nil
}

// insertPostTags writes one association per name
func insertPostTags(ctx context.Context, q Querier, postID int, names []string, tagIDs map[string]int) error {
	if len(names) == 0 {
		return nil
	}

	values := make([]string, len(names))
	args := make([]any, 0, len(names)*2)
	for i, name := range names {
		tagID, ok := tagIDs[name]
		if !ok {
			return fmt.Errorf("tag %q was not resolved", name)
		}
		values[i] = "(?, ?)"
		args = append(args, postID, tagID)
	}

	query := fmt.Sprintf("INSERT INTO post_tags (post_id, tag_id) VALUES %s", strings.Join(values, ", "))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create post tags: %w", err)
	}
	return nil
}

func (r *postRepository) getOne(ctx context.Context, query string, args ...any) (*models.Post, error) {
	posts, err := r.queryPosts(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, models.ErrPostNotFound
	}
	return &posts[0], nil
}

// queryPosts runs a post query and loads the tag names of every returned post
func (r *postRepository) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		var post models.Post
		var cover sql.NullString
		if err := rows.Scan(
			&post.ID,
			&post.Title,
			&post.Body,
			&post.Category,
			&cover,
			&post.UserID,
			&post.CreatedAt,
			&post.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		post.CoverImage = cover.String
		post.Tags = []string{}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	rows.Close()

	if err := r.attachTags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// attachTags fills the Tags field of posts with a single query
func (r *postRepository) attachTags(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	index := make(map[int]int, len(posts))
	args := make([]any, len(posts))
	for i, post := range posts {
		index[post.ID] = i
		args[i] = post.ID
	}

	query := fmt.Sprintf(`
		SELECT pt.post_id, t.name
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id IN (%s)
		ORDER BY t.name ASC
	`, placeholders(len(posts)))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query post tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int
		var name string
		if err := rows.Scan(&postID, &name); err != nil {
			return fmt.Errorf("failed to scan post tag: %w", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Tags = append(posts[i].Tags, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating post tags: %w", err)
	}
	return nil
}
