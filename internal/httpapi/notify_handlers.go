package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"aulared.org/internal/notify"
)

func (a *API) handleNotificaciones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}

	items, err := a.deps.Notifications.ListForUser(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleNotificacionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/notificaciones/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "leer" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}

	// Ownership is enforced in the store query, so a foreign id reads as 404.
	err := a.deps.Notifications.MarkRead(r.Context(), parts[0], principal.UserID)
	if err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "notification not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
