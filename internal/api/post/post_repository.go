package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-posts-api/app/db"
	"github.com/FACorreiaa/go-posts-api/app/observability/metrics"
	"github.com/FACorreiaa/go-posts-api/internal/types"
)

const postColumns = "id, title, content, image_url, user_id, created_at, updated_at"

var _ PostRepo = (*PostgresPostRepo)(nil)

// PostRepo defines the contract for post persistence. Lookups by id fail with
// types.ErrNotFound when the row is absent.
type PostRepo interface {
	Create(ctx context.Context, userID int64, params types.CreatePostParams, imageURL *string) (*types.Post, error)
	FindAll(ctx context.Context) ([]types.PostWithAuthor, error)
	FindByID(ctx context.Context, id int64) (*types.Post, error)
	// Update only touches the fields that are non-nil.
	Update(ctx context.Context, id int64, params types.UpdatePostParams, imageURL *string) (*types.Post, error)
	Delete(ctx context.Context, id int64) error
}

type PostgresPostRepo struct {
	logger  *slog.Logger
	db      database.DBTX
	metrics *metrics.AppMetrics
}

func NewPostgresPostRepo(db database.DBTX, appMetrics *metrics.AppMetrics, logger *slog.Logger) *PostgresPostRepo {
	return &PostgresPostRepo{
		logger:  logger,
		db:      db,
		metrics: appMetrics,
	}
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, semconv.DBSystemPostgreSQL, attribute.String("db.sql.table", "posts"))
	return otel.Tracer("PostRepo").Start(ctx, op, trace.WithAttributes(attrs...))
}

func scanPost(row pgx.Row) (*types.Post, error) {
	var p types.Post
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.ImageURL, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresPostRepo) Create(ctx context.Context, userID int64, params types.CreatePostParams, imageURL *string) (*types.Post, error) {
	ctx, span := startSpan(ctx, "Create", attribute.Int64("user.id", userID))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.Int64("userID", userID))

	query := `
        INSERT INTO posts (title, content, image_url, user_id)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + postColumns

	start := time.Now()
	p, err := scanPost(r.db.QueryRow(ctx, query, params.Title, params.Content, imageURL, userID))
	r.metrics.ObserveQuery(ctx, "posts.create", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert post", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("%w: inserting post: %v", types.ErrPersistence, err)
	}

	span.SetStatus(codes.Ok, "Post created")
	return p, nil
}

func (r *PostgresPostRepo) FindAll(ctx context.Context) ([]types.PostWithAuthor, error) {
	ctx, span := startSpan(ctx, "FindAll")
	defer span.End()

	l := r.logger.With(slog.String("method", "FindAll"))

	query := `
        SELECT p.id, p.title, p.content, p.image_url, p.user_id, p.created_at, p.updated_at, u.email
        FROM posts p
        JOIN users u ON u.id = p.user_id
        ORDER BY p.created_at DESC, p.id DESC`

	start := time.Now()
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.metrics.ObserveQuery(ctx, "posts.find_all", start, err)
		l.ErrorContext(ctx, "Failed to query posts", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("%w: querying posts: %v", types.ErrPersistence, err)
	}
	defer rows.Close()

	posts := []types.PostWithAuthor{}
	for rows.Next() {
		var p types.PostWithAuthor
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.ImageURL, &p.UserID, &p.CreatedAt, &p.UpdatedAt, &p.User.Email); err != nil {
			r.metrics.ObserveQuery(ctx, "posts.find_all", start, err)
			l.ErrorContext(ctx, "Failed to scan post row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("%w: scanning post: %v", types.ErrPersistence, err)
		}
		posts = append(posts, p)
	}
	err = rows.Err()
	r.metrics.ObserveQuery(ctx, "posts.find_all", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Error iterating post rows", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("%w: reading posts: %v", types.ErrPersistence, err)
	}

	l.DebugContext(ctx, "Fetched posts", slog.Int("count", len(posts)))
	span.SetStatus(codes.Ok, "Posts fetched")
	return posts, nil
}

func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*types.Post, error) {
	ctx, span := startSpan(ctx, "FindByID", attribute.Int64("post.id", id))
	defer span.End()

	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	start := time.Now()
	p, err := scanPost(r.db.QueryRow(ctx, query, id))
	return r.finish(ctx, span, "posts.find_by_id", start, id, p, err)
}

func (r *PostgresPostRepo) Update(ctx context.Context, id int64, params types.UpdatePostParams, imageURL *string) (*types.Post, error) {
	ctx, span := startSpan(ctx, "Update", attribute.Int64("post.id", id))
	defer span.End()

	query := `
        UPDATE posts
        SET title = COALESCE($2, title),
            content = COALESCE($3, content),
            image_url = COALESCE($4, image_url),
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + postColumns

	start := time.Now()
	p, err := scanPost(r.db.QueryRow(ctx, query, id, params.Title, params.Content, imageURL))
	return r.finish(ctx, span, "posts.update", start, id, p, err)
}

func (r *PostgresPostRepo) Delete(ctx context.Context, id int64) error {
	ctx, span := startSpan(ctx, "Delete", attribute.Int64("post.id", id))
	defer span.End()

	l := r.logger.With(slog.String("method", "Delete"), slog.Int64("postID", id))

	start := time.Now()
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	r.metrics.ObserveQuery(ctx, "posts.delete", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to delete post", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return fmt.Errorf("%w: deleting post: %v", types.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Post not found")
		return fmt.Errorf("post %d: %w", id, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Post deleted")
	return nil
}

// finish handles the shared single-row outcome of FindByID and Update.
func (r *PostgresPostRepo) finish(ctx context.Context, span trace.Span, query string, start time.Time,
	id int64, p *types.Post, err error) (*types.Post, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		r.metrics.ObserveQuery(ctx, query, start, nil)
		span.SetStatus(codes.Error, "Post not found")
		return nil, fmt.Errorf("post %d: %w", id, types.ErrNotFound)
	}
	r.metrics.ObserveQuery(ctx, query, start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Post query failed", slog.String("query", query), slog.Int64("postID", id), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("%w: %s: %v", types.ErrPersistence, query, err)
	}
	span.SetStatus(codes.Ok, "Post loaded")
	return p, nil
}
