package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the authenticated user.
type contextKey string

const userKey contextKey = "user"

// Authenticator resolves a bearer token to the user it names.
// service.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// ErrorWriter renders an error response. The HTTP layer passes its own
// writer so auth failures share the API's error format.
type ErrorWriter func(w http.ResponseWriter, err error)

// RequireAuth enforces "Authorization: Bearer <token>" on protected routes.
//
// Outcomes:
//   - header absent, other scheme or empty token → 401 missing_credential
//   - token rejected by the Authenticator         → whatever it returns
//     (401 invalid_credential, 404 unknown_subject)
//   - success → the *model.User is stored in the request context
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it.
// Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1 → resp.
func RequireAuth(authn Authenticator, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeErr(w, apperror.Unauthenticated("missing_credential", "a bearer token is required"))
				return
			}

			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeErr(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// BearerToken extracts the token from the Authorization header. The scheme
// is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or (nil, false) outside a
// RequireAuth-protected route.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}
