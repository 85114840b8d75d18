package post

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-posts-api/internal/types"
)

const (
	cacheKeyAll     = "posts:all"
	cacheKeyPrefix  = "posts:"
	deletedMessage  = "Post deleted"
	defaultCacheTTL = 5 * time.Minute
)

var _ PostService = (*PostServiceImpl)(nil)

// PostService holds the post business rules. actingUserID is always the
// authenticated "sub"; only the owner may update or remove a post.
type PostService interface {
	Create(ctx context.Context, userID int64, params types.CreatePostParams, imageName string) (*types.Post, error)
	FindAll(ctx context.Context) ([]types.PostWithAuthor, error)
	FindOne(ctx context.Context, id int64) (*types.Post, error)
	Update(ctx context.Context, actingUserID, id int64, params types.UpdatePostParams, imageName string) (*types.Post, error)
	Remove(ctx context.Context, actingUserID, id int64) (*types.Response, error)
	// Authorize fails with ErrNotFound or ErrForbidden unless actingUserID owns the post.
	Authorize(ctx context.Context, actingUserID, id int64) error
}

type PostServiceImpl struct {
	logger *slog.Logger
	repo   PostRepo
	cache  *cache.Cache

	// gen is bumped on every invalidation; a read only fills the cache if no
	// invalidation happened while it was in flight.
	mu  sync.Mutex
	gen uint64
}

func NewPostService(repo PostRepo, ttl, cleanup time.Duration, logger *slog.Logger) *PostServiceImpl {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &PostServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(ttl, cleanup),
	}
}

func postKey(id int64) string {
	return cacheKeyPrefix + strconv.FormatInt(id, 10)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostServiceImpl) Create(ctx context.Context, userID int64, params types.CreatePostParams, imageName string) (*types.Post, error) {
	ctx, span := otel.Tracer("PostService").Start(ctx, "Create", trace.WithAttributes(
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.Int64("userID", userID))

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, "Invalid input")
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}

	p, err := s.repo.Create(ctx, userID, params, optional(imageName))
	if err != nil {
		l.ErrorContext(ctx, "Failed to create post", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		return nil, err
	}
	s.invalidateList()

	l.InfoContext(ctx, "Post created", slog.Int64("postID", p.ID))
	span.SetStatus(codes.Ok, "Post created")
	return p, nil
}

func (s *PostServiceImpl) FindAll(ctx context.Context) ([]types.PostWithAuthor, error) {
	ctx, span := otel.Tracer("PostService").Start(ctx, "FindAll")
	defer span.End()

	if cached, found := s.cache.Get(cacheKeyAll); found {
		span.AddEvent("Cache hit")
		posts := cached.([]types.PostWithAuthor)
		return append([]types.PostWithAuthor(nil), posts...), nil
	}

	gen := s.generation()
	posts, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list posts", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "FindAll failed")
		return nil, err
	}
	s.fill(gen, cacheKeyAll, posts)

	span.SetStatus(codes.Ok, "Posts listed")
	return append([]types.PostWithAuthor(nil), posts...), nil
}

func (s *PostServiceImpl) FindOne(ctx context.Context, id int64) (*types.Post, error) {
	ctx, span := otel.Tracer("PostService").Start(ctx, "FindOne", trace.WithAttributes(
		attribute.Int64("post.id", id),
	))
	defer span.End()

	if cached, found := s.cache.Get(postKey(id)); found {
		span.AddEvent("Cache hit")
		p := cached.(types.Post)
		return &p, nil
	}

	gen := s.generation()
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "FindOne failed")
		return nil, err
	}
	s.fill(gen, postKey(id), *p)

	span.SetStatus(codes.Ok, "Post found")
	return p, nil
}

func (s *PostServiceImpl) Update(ctx context.Context, actingUserID, id int64, params types.UpdatePostParams, imageName string) (*types.Post, error) {
	ctx, span := otel.Tracer("PostService").Start(ctx, "Update", trace.WithAttributes(
		attribute.Int64("user.id", actingUserID),
		attribute.Int64("post.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Update"), slog.Int64("userID", actingUserID), slog.Int64("postID", id))

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, "Invalid input")
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}

	if err := s.authorize(ctx, actingUserID, id); err != nil {
		l.InfoContext(ctx, "Update rejected", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update rejected")
		return nil, err
	}

	p, err := s.repo.Update(ctx, id, params, optional(imageName))
	if err != nil {
		l.ErrorContext(ctx, "Failed to update post", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		return nil, err
	}
	s.invalidate(id)

	l.InfoContext(ctx, "Post updated")
	span.SetStatus(codes.Ok, "Post updated")
	return p, nil
}

func (s *PostServiceImpl) Remove(ctx context.Context, actingUserID, id int64) (*types.Response, error) {
	ctx, span := otel.Tracer("PostService").Start(ctx, "Remove", trace.WithAttributes(
		attribute.Int64("user.id", actingUserID),
		attribute.Int64("post.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Remove"), slog.Int64("userID", actingUserID), slog.Int64("postID", id))

	if err := s.authorize(ctx, actingUserID, id); err != nil {
		l.InfoContext(ctx, "Remove rejected", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Remove rejected")
		return nil, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		l.ErrorContext(ctx, "Failed to delete post", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Remove failed")
		return nil, err
	}
	s.invalidate(id)

	l.InfoContext(ctx, "Post deleted")
	span.SetStatus(codes.Ok, "Post deleted")
	return &types.Response{Message: deletedMessage}, nil
}

// Authorize lets callers reject a request before doing work on its behalf;
// Update and Remove check again.
func (s *PostServiceImpl) Authorize(ctx context.Context, actingUserID, id int64) error {
	ctx, span := otel.Tracer("PostService").Start(ctx, "Authorize", trace.WithAttributes(
		attribute.Int64("user.id", actingUserID),
		attribute.Int64("post.id", id),
	))
	defer span.End()

	if err := s.authorize(ctx, actingUserID, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Not authorized")
		return err
	}
	span.SetStatus(codes.Ok, "Authorized")
	return nil
}

// authorize reads the post from the store, not the cache, so ownership is
// checked against current data.
func (s *PostServiceImpl) authorize(ctx context.Context, actingUserID, id int64) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != actingUserID {
		return fmt.Errorf("post %d belongs to another user: %w", id, types.ErrForbidden)
	}
	return nil
}

func (s *PostServiceImpl) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// fill caches v unless an invalidation ran since gen was read.
func (s *PostServiceImpl) fill(gen uint64, key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.Set(key, v, cache.DefaultExpiration)
	}
}

func (s *PostServiceImpl) invalidate(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Delete(postKey(id))
	s.cache.Delete(cacheKeyAll)
}

func (s *PostServiceImpl) invalidateList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Delete(cacheKeyAll)
}
