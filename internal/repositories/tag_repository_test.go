package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTagTestRepository creates a tag repository with a mock database
func setupTagTestRepository(t *testing.T) (*tagRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewTagRepository(db)

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

func TestNormalizeTagNames(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil input", input: nil, expected: []string{}},
		{name: "trims and drops empty", input: []string{" go ", "", "   "}, expected: []string{"go"}},
		{name: "dedupes keeping first order", input: []string{"b", "a", "b", " a"}, expected: []string{"b", "a"}},
		{name: "case sensitive", input: []string{"Go", "go"}, expected: []string{"Go", "go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTagNames(tt.input))
		})
	}
}

func TestTagRepository_ResolveOrCreate(t *testing.T) {
	insertQuery := regexp.QuoteMeta("INSERT IGNORE INTO tags (name) VALUES (?), (?)")
	selectQuery := regexp.QuoteMeta("SELECT id, name FROM tags WHERE name IN (?, ?) LOCK IN SHARE MODE")

	tests := []struct {
		name          string
		names         []string
		setupMock     func(sqlmock.Sqlmock)
		expected      map[string]int
		expectedError bool
	}{
		{
			name:      "empty input runs no query",
			names:     []string{},
			setupMock: func(mock sqlmock.Sqlmock) {},
			expected:  map[string]int{},
		},
		{
			name:  "existing and new tags",
			names: []string{"go", "sql"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(insertQuery).
					WithArgs("go", "sql").
					WillReturnResult(sqlmock.NewResult(8, 1))
				rows := sqlmock.NewRows([]string{"id", "name"}).
					AddRow(3, "go").
					AddRow(8, "sql")
				mock.ExpectQuery(selectQuery).
					WithArgs("go", "sql").
					WillReturnRows(rows)
			},
			expected: map[string]int{"go": 3, "sql": 8},
		},
		{
			name:  "insert error",
			names: []string{"go", "sql"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(insertQuery).
					WillReturnError(errors.New("database error"))
			},
			expectedError: true,
		},
		{
			name:  "unresolved name",
			names: []string{"go", "sql"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(insertQuery).
					WillReturnResult(sqlmock.NewResult(0, 0))
				rows := sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "go")
				mock.ExpectQuery(selectQuery).WillReturnRows(rows)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupTagTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			result, err := repo.ResolveOrCreate(context.Background(), repo.db, tt.names)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTagRepository_ListAll(t *testing.T) {
	repo, mock, cleanup := setupTagTestRepository(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(2, "Go").
		AddRow(1, "go")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM tags ORDER BY name ASC")).WillReturnRows(rows)

	tags, err := repo.ListAll(context.Background())

	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Go", tags[0].Name)
	assert.Equal(t, 1, tags[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagRepository_PruneOrphans(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expected      int64
		expectedError bool
	}{
		{
			name: "removes orphans",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("DELETE t FROM tags t LEFT JOIN post_tags pt ON pt.tag_id = t.id WHERE pt.tag_id IS NULL")).
					WillReturnResult(sqlmock.NewResult(0, 4))
			},
			expected: 4,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE t FROM tags").
					WillReturnError(errors.New("database error"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupTagTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			removed, err := repo.PruneOrphans(context.Background())

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, removed)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
