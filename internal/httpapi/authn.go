package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"linoslms.org/internal/access"
	"linoslms.org/internal/records"
	"linoslms.org/internal/session"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// screenPaths maps API collections to the screen paths the role table
// is keyed by. Collections without an entry fall through to the
// default-allow rule.
var screenPaths = map[string]string{
	"users":     "/users",
	"patients":  "/patients",
	"specimens": "/specimens",
	"tests":     "/testing",
	"results":   "/results",
}

type userKey struct{}

func contextWithUser(ctx context.Context, user records.User) context.Context {
	return context.WithValue(ctx, userKey{}, &user)
}

func userFromContext(ctx context.Context) (*records.User, bool) {
	v, ok := ctx.Value(userKey{}).(*records.User)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// withAuth authenticates the bearer token, resolves the acting user and
// gates the request by the same role table the sidebar uses.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := session.ParseAndValidate(token)
		if err != nil {
			if errors.Is(err, session.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			} else {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		user, err := a.store.FindUser(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unknown user")
			return
		}
		if !user.Active {
			writeError(w, r, http.StatusUnauthorized, "account disabled")
			return
		}

		if screen, gated := screenPathForRequest(r.URL.Path); gated {
			if !access.CanAccess(&user, screen) {
				writeError(w, r, http.StatusForbidden, "insufficient role")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), user)))
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// screenPathForRequest resolves /v1/<collection>[/...] to its screen
// path. The second return is false when the collection is not gated.
func screenPathForRequest(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/v1/")
	if !ok {
		return "", false
	}
	collection := rest
	if i := strings.IndexByte(collection, '/'); i >= 0 {
		collection = collection[:i]
	}
	screen, gated := screenPaths[collection]
	return screen, gated
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
