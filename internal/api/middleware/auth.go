package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragdesk/internal/api"
	"github.com/cloo-solutions/ragdesk/internal/domain"
)

type contextKey string

const (
	UserKey       contextKey = "user"
	userHolderKey contextKey = "user_holder"
)

// userHolder lets middleware that wraps BearerAuth see who was authenticated.
type userHolder struct {
	userID string
}

// ensureUserHolder returns the holder already on ctx or installs a new one.
func ensureUserHolder(ctx context.Context) (context.Context, *userHolder) {
	if h, ok := ctx.Value(userHolderKey).(*userHolder); ok {
		return ctx, h
	}
	h := &userHolder{}
	return context.WithValue(ctx, userHolderKey, h), h
}

// TokenAuthenticator resolves a bearer token to an active user.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// BearerAuth rejects requests without a valid bearer token and stores the
// authenticated user in the request context.
func BearerAuth(auth TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				api.HandleError(w, err)
				return
			}

			if h, ok := r.Context().Value(userHolderKey).(*userHolder); ok {
				h.userID = user.ID
			}
			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperuser must run after BearerAuth.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			api.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsSuperuser {
			api.HandleError(w, domain.ErrNotSuperuser)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(UserKey).(*domain.User)
	return user
}

func GetUserID(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.ID
	}
	return ""
}

// WithUser returns ctx carrying user, as BearerAuth would.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
