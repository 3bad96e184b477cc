package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"aulared.org/api/spec"
	"aulared.org/internal/licitacion"
	"aulared.org/internal/notify"
	"aulared.org/internal/obs"
	"aulared.org/internal/rbac"
	"aulared.org/internal/token"
)

// ReadyProbe checks the dependencies the service cannot run without.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries everything the HTTP layer is composed from. Handlers never
// reach for globals or the environment.
type Deps struct {
	Ready   ReadyProbe
	Version string

	Resolver      *rbac.Resolver
	RBAC          *rbac.Service
	Licitaciones  *licitacion.Service
	Notifications notify.Store

	Tokens       *token.Service
	ServiceToken string

	// RBACAdminEnabled gates the assignment and matrix administration
	// endpoints; when false they answer 404 regardless of authentication.
	RBACAdminEnabled bool

	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	deps Deps
}

func New(deps Deps) *API {
	a := &API{
		mux:  http.NewServeMux(),
		deps: deps,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissions)

	a.mux.HandleFunc("/v1/licitaciones", a.handleLicitacionesCollection)
	a.mux.HandleFunc("/v1/licitaciones/", a.handleLicitacionResource)

	a.mux.HandleFunc("/v1/notificaciones", a.handleNotificaciones)
	a.mux.HandleFunc("/v1/notificaciones/", a.handleNotificacionResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wired http.Handler: metrics around logging around
// the limits, with authentication innermost so rejected requests are still
// logged and counted.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.withAuth(a.mux)
	if a.deps.RateLimitPerSecond > 0 {
		h = RateLimit(h, a.deps.RateLimitBurst, a.deps.RateLimitPerSecond)
	}
	if a.deps.MaxBodyBytes > 0 {
		h = MaxBodyBytes(h, a.deps.MaxBodyBytes)
	}
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "aulared-api",
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "aulared-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.deps.Version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
