package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-posts-api/app/observability/metrics"
	"github.com/FACorreiaa/go-posts-api/internal/types"
)

// dummyPassword is hashed once and compared against when signin finds no
// credential, so unknown emails cost the same bcrypt round as wrong passwords.
const dummyPassword = "not-a-real-password"

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthService interface {
	Signup(ctx context.Context, email, password string) (string, error)
	Signin(ctx context.Context, email, password string) (string, error)
	SignToken(userID int64, email string) (string, error)
}

type AuthServiceImpl struct {
	logger  *slog.Logger
	store   CredentialStore
	hasher  PasswordHasher
	issuer  TokenIssuer
	metrics *metrics.AppMetrics

	dummyDigest string
}

// NewAuthService fails when the hasher cannot produce the dummy digest.
func NewAuthService(store CredentialStore, hasher PasswordHasher, issuer TokenIssuer,
	appMetrics *metrics.AppMetrics, logger *slog.Logger) (*AuthServiceImpl, error) {
	digest, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("preparing dummy password digest: %w", err)
	}
	return &AuthServiceImpl{
		logger:      logger,
		store:       store,
		hasher:      hasher,
		issuer:      issuer,
		metrics:     appMetrics,
		dummyDigest: digest,
	}, nil
}

func (s *AuthServiceImpl) Signup(ctx context.Context, email, password string) (token string, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Signup")
	defer span.End()
	defer func(start time.Time) { s.metrics.ObserveAuth(ctx, "signup", start, err) }(time.Now())

	l := s.logger.With(slog.String("method", "Signup"))

	digest, err := s.hasher.Hash(password)
	if err != nil {
		l.WarnContext(ctx, "Failed to hash password", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hash failed")
		return "", err
	}

	cred, err := s.store.Create(ctx, types.NewCredential{Email: email, PasswordHash: digest})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create credential failed")
		if errors.Is(err, types.ErrDuplicateIdentity) {
			l.InfoContext(ctx, "Signup rejected, email exists")
			return "", err
		}
		l.ErrorContext(ctx, "Failed to create credential", slog.Any("error", err))
		return "", asPersistence(err)
	}
	span.SetAttributes(attribute.Int64("user.id", cred.ID))

	token, err = s.SignToken(cred.ID, cred.Email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to sign token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Sign failed")
		return "", err
	}

	l.InfoContext(ctx, "User signed up", slog.Int64("userID", cred.ID))
	span.SetStatus(codes.Ok, "Signed up")
	return token, nil
}

func (s *AuthServiceImpl) Signin(ctx context.Context, email, password string) (token string, err error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Signin")
	defer span.End()
	defer func(start time.Time) { s.metrics.ObserveAuth(ctx, "signin", start, err) }(time.Now())

	l := s.logger.With(slog.String("method", "Signin"))

	cred, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to look up credential", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return "", asPersistence(err)
	}

	if cred == nil {
		// The result is discarded; only the time spent matters.
		_, _ = s.hasher.Verify(password, s.dummyDigest)
		l.InfoContext(ctx, "Signin rejected")
		span.SetStatus(codes.Error, "Invalid credentials")
		return "", types.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, cred.PasswordHash)
	if err != nil {
		l.ErrorContext(ctx, "Stored password digest is unusable", slog.Int64("userID", cred.ID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Verify failed")
		return "", asPersistence(err)
	}
	if !ok {
		l.InfoContext(ctx, "Signin rejected")
		span.SetStatus(codes.Error, "Invalid credentials")
		return "", types.ErrInvalidCredentials
	}

	token, err = s.SignToken(cred.ID, cred.Email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to sign token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Sign failed")
		return "", err
	}

	span.SetAttributes(attribute.Int64("user.id", cred.ID))
	span.SetStatus(codes.Ok, "Signed in")
	return token, nil
}

// SignToken is shared by Signup and Signin so both build identical tokens.
func (s *AuthServiceImpl) SignToken(userID int64, email string) (string, error) {
	token, err := s.issuer.Issue(userID, email)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrPersistence, err)
	}
	return token, nil
}

func asPersistence(err error) error {
	if errors.Is(err, types.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrPersistence, err)
}
