package auth

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

const usersEmailConstraint = "users_email_key"

var _ CredentialStore = (*PostgresCredentialStore)(nil)

// CredentialStore persists one credential per email.
type CredentialStore interface {
	// Create fails with types.ErrDuplicateIdentity when the email is taken.
	Create(ctx context.Context, params types.NewCredential) (*types.UserCredential, error)
	// FindByEmail returns (nil, nil) when no credential matches.
	FindByEmail(ctx context.Context, email string) (*types.UserCredential, error)
}

type PostgresCredentialStore struct {
	logger  *slog.Logger
	db      database.DBTX
	metrics *metrics.AppMetrics
}

func NewPostgresCredentialStore(db database.DBTX, appMetrics *metrics.AppMetrics, logger *slog.Logger) *PostgresCredentialStore {
	return &PostgresCredentialStore{
		logger:  logger,
		db:      db,
		metrics: appMetrics,
	}
}

// Create inserts the credential in one statement; the unique constraint on
// email decides racing signups.
func (r *PostgresCredentialStore) Create(ctx context.Context, params types.NewCredential) (*types.UserCredential, error) {
	ctx, span := otel.Tracer("CredentialStore").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"))

	query := `
        INSERT INTO users (email, password_hash)
        VALUES ($1, $2)
        RETURNING id, email, password_hash, created_at, updated_at`

	start := time.Now()
	var c types.UserCredential
	err := r.db.QueryRow(ctx, query, params.Email, params.PasswordHash).Scan(
		&c.ID, &c.Email, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt,
	)
	r.metrics.ObserveQuery(ctx, "users.create", start, err)
	if err != nil {
		span.RecordError(err)
		if database.IsUniqueViolation(err, usersEmailConstraint) {
			l.WarnContext(ctx, "Email already registered")
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, fmt.Errorf("creating credential: %w", types.ErrDuplicateIdentity)
		}
		l.ErrorContext(ctx, "Failed to insert credential", slog.Any("error", err))
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("%w: inserting credential: %v", types.ErrPersistence, err)
	}

	l.DebugContext(ctx, "Credential created", slog.Int64("userID", c.ID))
	span.SetStatus(codes.Ok, "Credential created")
	return &c, nil
}

func (r *PostgresCredentialStore) FindByEmail(ctx context.Context, email string) (*types.UserCredential, error) {
	ctx, span := otel.Tracer("CredentialStore").Start(ctx, "FindByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "FindByEmail"))

	query := `
        SELECT id, email, password_hash, created_at, updated_at
        FROM users
        WHERE email = $1`

	start := time.Now()
	var c types.UserCredential
	err := r.db.QueryRow(ctx, query, email).Scan(
		&c.ID, &c.Email, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		r.metrics.ObserveQuery(ctx, "users.find_by_email", start, nil)
		span.SetStatus(codes.Ok, "No credential")
		return nil, nil
	}
	r.metrics.ObserveQuery(ctx, "users.find_by_email", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query credential", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("%w: querying credential: %v", types.ErrPersistence, err)
	}

	span.SetStatus(codes.Ok, "Credential found")
	return &c, nil
}
