package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-posts-api/internal/api"
	"github.com/FACorreiaa/go-posts-api/internal/types"
)

type contextKey string

const claimsKey contextKey = "authClaims"

// Authenticate is the access guard for protected routes. Every rejection is the
// same 401 envelope, whichever check failed.
func Authenticate(verifier TokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			rawToken, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				l.DebugContext(ctx, "Missing or malformed Authorization header")
				api.WriteError(w, r, nil, types.ErrUnauthorized)
				return
			}

			claims, err := verifier.Verify(rawToken)
			if err != nil {
				l.WarnContext(ctx, "Token verification failed", slog.Any("error", err))
				api.WriteError(w, r, nil, types.ErrUnauthorized)
				return
			}

			trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("user.id", claims.Sub))
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(ctx, claims)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func ContextWithClaims(ctx context.Context, claims *types.AuthClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaimsFromContext returns the identity attached by Authenticate.
func GetClaimsFromContext(ctx context.Context) (*types.AuthClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*types.AuthClaims)
	return claims, ok && claims != nil
}

// GetUserIDFromContext returns the acting user's id (the "sub" claim).
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	return claims.Sub, true
}
