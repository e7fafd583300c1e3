package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/finquery/finquery/internal/authz"
	"github.com/finquery/finquery/internal/identity"
	"github.com/finquery/finquery/internal/platform/httpx"
	"github.com/finquery/finquery/internal/token"
)

// Middleware authenticates bearer tokens and resolves permissions for
// downstream handlers. Every step is a rejection point: missing or
// malformed header, failed verification, unknown or inactive user.
type Middleware struct {
	Issuer   *token.Issuer
	Repo     identity.Repository
	Snapshot *identity.SnapshotLoader
	Logger   *slog.Logger
}

// RequireUser wraps handlers that need an authenticated caller with
// resolved permissions in the request context.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "missing or invalid authorization header")
			return
		}

		claims, err := m.Issuer.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "invalid or expired token")
			return
		}

		user, err := m.Repo.GetUserByID(r.Context(), claims.UserID)
		if err != nil || !user.IsActive {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "user not found or inactive")
			return
		}

		snap, err := m.Snapshot.Load(r.Context())
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("load identity snapshot", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}

		principal := &authz.Principal{
			User:        user,
			Permissions: authz.Resolve(*user, snap),
		}
		next.ServeHTTP(w, r.WithContext(authz.ContextWithPrincipal(r.Context(), principal)))
	})
}
