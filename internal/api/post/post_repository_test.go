package post

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-posts-api/internal/types"
)

var postRowColumns = []string{"id", "title", "content", "image_url", "user_id", "created_at", "updated_at"}

func strPtr(s string) *string { return &s }

var nilStr *string

func newMockRepo(t *testing.T) (*PostgresPostRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPostgresPostRepo(pool, nil, slog.Default()), pool
}

func TestPostgresPostRepo_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo, pool := newMockRepo(t)

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO posts (title, content, image_url, user_id)")).
		WithArgs("Hello", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(2)).
		WillReturnRows(pgxmock.NewRows(postRowColumns).
			AddRow(int64(10), "Hello", strPtr("body"), strPtr("a.webp"), int64(2), now, now))

	p, err := repo.Create(ctx, 2, types.CreatePostParams{Title: "Hello", Content: strPtr("body")}, strPtr("a.webp"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.ID)
	assert.Equal(t, "a.webp", *p.ImageURL)
	assert.Equal(t, int64(2), p.UserID)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresPostRepo_FindAll(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("joins author email", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		cols := append(append([]string{}, postRowColumns...), "email")
		pool.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = p.user_id")).
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(int64(2), "Second", nilStr, nilStr, int64(1), now, now, "a@b.com").
				AddRow(int64(1), "First", strPtr("c"), nilStr, int64(3), now.Add(-time.Hour), now, "c@d.com"))

		posts, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "a@b.com", posts[0].User.Email)
		assert.Nil(t, posts[0].Content)
		assert.Equal(t, "c@d.com", posts[1].User.Email)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		cols := append(append([]string{}, postRowColumns...), "email")
		pool.ExpectQuery("SELECT").WillReturnRows(pgxmock.NewRows(cols))

		posts, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, posts)
		assert.Empty(t, posts)
	})

	t.Run("query failure", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery("SELECT").WillReturnError(errors.New("down"))

		_, err := repo.FindAll(ctx)
		assert.ErrorIs(t, err, types.ErrPersistence)
	})
}

func TestPostgresPostRepo_FindByID(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta("FROM posts WHERE id = $1")

	t.Run("found", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		now := time.Now()
		pool.ExpectQuery(query).WithArgs(int64(4)).
			WillReturnRows(pgxmock.NewRows(postRowColumns).AddRow(int64(4), "T", nilStr, nilStr, int64(1), now, now))

		p, err := repo.FindByID(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, "T", p.Title)
	})

	t.Run("missing", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(query).WithArgs(int64(4)).WillReturnError(pgx.ErrNoRows)

		_, err := repo.FindByID(ctx, 4)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestPostgresPostRepo_Update(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	query := regexp.QuoteMeta("UPDATE posts")

	t.Run("partial", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(query).WithArgs(int64(4), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(postRowColumns).AddRow(int64(4), "New", strPtr("old"), strPtr("old.webp"), int64(1), now, now))

		p, err := repo.Update(ctx, 4, types.UpdatePostParams{Title: strPtr("New")}, nil)
		require.NoError(t, err)
		assert.Equal(t, "New", p.Title)
		assert.Equal(t, "old.webp", *p.ImageURL)
	})

	t.Run("missing", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(query).WithArgs(int64(9), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Update(ctx, 9, types.UpdatePostParams{}, nil)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestPostgresPostRepo_Delete(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta("DELETE FROM posts WHERE id = $1")

	t.Run("deleted", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(query).WithArgs(int64(4)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
		assert.NoError(t, repo.Delete(ctx, 4))
	})

	t.Run("missing", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(query).WithArgs(int64(4)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
		assert.ErrorIs(t, repo.Delete(ctx, 4), types.ErrNotFound)
	})

	t.Run("failure", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(query).WithArgs(int64(4)).WillReturnError(&pgconn.PgError{Code: "57P01"})
		assert.ErrorIs(t, repo.Delete(ctx, 4), types.ErrPersistence)
	})
}
