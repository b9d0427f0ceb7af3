package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/blogbackend/backend/internal/models"
)

// tagRepository implements the tag registry
type tagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *sql.DB) *tagRepository {
	return &tagRepository{
		db: db,
	}
}

// NormalizeTagNames trims names, drops empty ones and removes duplicates while keeping the first occurrence order.
// Names are case-sensitive.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}

// ResolveOrCreate returns the tag id for every name, creating the tags that do not exist yet.
//
// Names must already be normalized. The insert relies on the unique index on tags.name,
// so two transactions resolving the same new name end up with a single row. The resolved
// rows are share-locked until the caller's transaction ends so PruneOrphans cannot remove
// them before the associations are written.
func (r *tagRepository) ResolveOrCreate(ctx context.Context, q Querier, names []string) (map[string]int, error) {
	ids := make(map[string]int, len(names))
	if len(names) == 0 {
		return ids, nil
	}

	args := make([]any, len(names))
	values := make([]string, len(names))
	for i, name := range names {
		args[i] = name
		values[i] = "(?)"
	}

	insertQuery := fmt.Sprintf("INSERT IGNORE INTO tags (name) VALUES %s", strings.Join(values, ", "))
	if _, err := q.ExecContext(ctx, insertQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to create tags: %w", err)
	}

	selectQuery := fmt.Sprintf("SELECT id, name FROM tags WHERE name IN (%s) LOCK IN SHARE MODE", placeholders(len(names)))
	rows, err := q.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		ids[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	for _, name := range names {
		if _, ok := ids[name]; !ok {
			return nil, fmt.Errorf("failed to resolve tag %q", name)
		}
	}

	return ids, nil
}

// ListAll retrieves all tags ordered by name
func (r *tagRepository) ListAll(ctx context.Context) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM tags ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := make([]models.Tag, 0)
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	return tags, nil
}

// PruneOrphans deletes tags that no post references and returns how many were removed
func (r *tagRepository) PruneOrphans(ctx context.Context) (int64, error) {
	query := `
		DELETE t FROM tags t
		LEFT JOIN post_tags pt ON pt.tag_id = t.id
		WHERE pt.tag_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prune orphan tags: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return removed, nil
}
