package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"aulared.org/internal/audit"
	"aulared.org/internal/rbac"
	"aulared.org/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// serviceSubject identifies requests authenticated with the shared
	// service credential in logs and audit entries.
	serviceSubject = "service"
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/openapi.yaml",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		if a.isServiceToken(raw) {
			// Shared service credential: acts with every permission, so each
			// use is audited with the request path.
			_ = audit.LogEvent(r.Context(), "authn.service_token.used", map[string]any{
				"path":   r.URL.Path,
				"method": r.Method,
			})
			ctx := rbac.ContextWithPrincipal(r.Context(), rbac.BreakGlassPrincipal(serviceSubject))
			ctx = audit.WithActor(ctx, serviceSubject)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		userID, err := a.deps.Tokens.Verify(raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrNotConfigured):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		principal, err := a.deps.Resolver.Principal(r.Context(), userID)
		if err != nil {
			if errors.Is(err, rbac.ErrInvalidInput) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := rbac.ContextWithPrincipal(r.Context(), principal)
		ctx = audit.WithActor(ctx, principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) isServiceToken(raw string) bool {
	want := a.deps.ServiceToken
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(raw), []byte(want)) == 1
}

// ensurePermission loads the principal and checks one permission key, writing
// the 401/403 response itself. Returns the principal and whether to proceed.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm string) (rbac.Principal, bool) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return rbac.Principal{}, false
	}
	if !principal.HasPermission(perm) {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return rbac.Principal{}, false
	}
	return principal, true
}

// requirePrincipal is ensurePermission without a permission key, for endpoints
// whose authorization is scope-based rather than matrix-based.
func (a *API) requirePrincipal(w http.ResponseWriter, r *http.Request) (rbac.Principal, bool) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return rbac.Principal{}, false
	}
	return principal, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	raw := strings.TrimSpace(header[len(bearer):])
	if raw == "" {
		return "", errors.New("missing bearer token")
	}
	return raw, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
