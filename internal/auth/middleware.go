package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/httpx"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(domain.Identity)
	return id, ok
}

// UserLookup resolves the account behind a verified token.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type Middleware struct {
	tokens *TokenManager
	users  UserLookup
	logger *slog.Logger
}

func NewMiddleware(tokens *TokenManager, users UserLookup, logger *slog.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: users, logger: logger}
}

// Authenticate requires a valid bearer token whose user still exists. The
// identity carries the stored role, not the one in the token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.WriteError(w, r, m.logger, domain.Unauthenticated("not authenticated"))
			return
		}

		claims, err := m.tokens.Verify(raw)
		if err != nil {
			httpx.WriteError(w, r, m.logger, err)
			return
		}

		user, err := m.users.GetByID(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				err = domain.Unauthenticated("could not validate credentials")
			}
			httpx.WriteError(w, r, m.logger, err)
			return
		}

		id := domain.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole must run after Authenticate.
func (m *Middleware) RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				httpx.WriteError(w, r, m.logger, domain.Unauthenticated("not authenticated"))
				return
			}
			if err := id.Require(role); err != nil {
				httpx.WriteError(w, r, m.logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
