package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/strefethen/amplipi-keypad-go/internal/api"
	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
	"github.com/strefethen/amplipi-keypad-go/internal/config"
)

// Paths reachable without a token. Anything under a public prefix is too.
var (
	publicPaths = map[string]bool{
		"/v1/auth/pair/start":    true,
		"/v1/auth/pair/complete": true,
		"/v1/auth/refresh":       true,
	}
	publicPrefixes = []string{"/v1/health", "/v1/openapi"}
)

// testIdentity is attached to x-test-mode requests when test mode is on.
var testIdentity = Identity{
	DeviceID:   "test-device",
	DeviceName: "Test Device",
	Scope:      ScopeControl,
	Type:       TokenTypeAccess,
}

// TestModeEnabled reports whether cfg lets x-test-mode bypass tokens. It
// only ever does in development.
func TestModeEnabled(cfg config.Config) bool {
	return cfg.AllowTestMode && cfg.NodeEnv == "development"
}

// Middleware requires a valid access token on every non-public route and
// rejects methods the token's scope does not allow.
func Middleware(issuer *Issuer, testMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if testMode && r.Header.Get("x-test-mode") == "true" {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), testIdentity)))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Missing or malformed bearer token"))
				return
			}
			id, err := issuer.Verify(token)
			switch {
			case errors.Is(err, ErrTokenExpired):
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Token has expired", apperrors.ErrorCodeAuthTokenExpired))
				return
			case err != nil:
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid token", apperrors.ErrorCodeAuthTokenInvalid))
				return
			case id.Type != TokenTypeAccess:
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Refresh tokens cannot call the API", apperrors.ErrorCodeAuthTokenInvalid))
				return
			}
			if !id.Scope.Allows(r.Method) {
				api.WriteError(w, r, apperrors.NewForbiddenError(
					"Token scope "+string(id.Scope)+" does not allow "+r.Method,
					apperrors.ErrorCodeAuthScopeDenied,
				))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

func isPublic(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
