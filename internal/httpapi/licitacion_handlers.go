package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"aulared.org/internal/audit"
	"aulared.org/internal/licitacion"
	"aulared.org/internal/rbac"
)

type createLicitacionRequest struct {
	SchoolID    int64  `json:"school_id"`
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion"`
}

type avanzarRequest struct {
	Estado string `json:"estado"`
}

func (a *API) handleLicitacionesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createLicitacion(w, r)
	case http.MethodGet:
		a.listLicitaciones(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLicitacionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/licitaciones/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getLicitacion(w, r, id)
	case len(parts) == 2 && parts[1] == "avanzar":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.avanzarLicitacion(w, r, id)
	case len(parts) == 2 && parts[1] == "confirmar-publicacion":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.confirmarPublicacion(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createLicitacion(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.ensurePermission(w, r, rbac.PermLicitacionCreate)
	if !ok {
		return
	}
	var req createLicitacionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Titulo) == "" {
		writeError(w, r, http.StatusBadRequest, "titulo is required")
		return
	}

	lic, err := a.deps.Licitaciones.Create(r.Context(), principal, licitacion.Licitacion{
		SchoolID:    req.SchoolID,
		Titulo:      req.Titulo,
		Descripcion: req.Descripcion,
	})
	if err != nil {
		handleLicitacionError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "licitacion.create", map[string]any{
		"licitacion_id": lic.ID,
		"school_id":     lic.SchoolID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/licitaciones/%d", lic.ID))
	writeJSON(w, http.StatusCreated, lic)
}

func (a *API) listLicitaciones(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	schoolParam := strings.TrimSpace(r.URL.Query().Get("school_id"))
	if schoolParam == "" {
		writeError(w, r, http.StatusBadRequest, "school_id query parameter is required")
		return
	}
	schoolID, err := strconv.ParseInt(schoolParam, 10, 64)
	if err != nil || schoolID <= 0 {
		writeError(w, r, http.StatusBadRequest, "school_id must be a positive integer")
		return
	}

	items, err := a.deps.Licitaciones.ListBySchool(r.Context(), principal, schoolID)
	if err != nil {
		handleLicitacionError(w, r, err)
		return
	}
	if items == nil {
		items = []licitacion.Licitacion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"school_id": schoolID,
		"items":     items,
	})
}

func (a *API) getLicitacion(w http.ResponseWriter, r *http.Request, id int64) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	lic, err := a.deps.Licitaciones.Get(r.Context(), principal, id)
	if err != nil {
		handleLicitacionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lic)
}

func (a *API) avanzarLicitacion(w http.ResponseWriter, r *http.Request, id int64) {
	principal, ok := a.ensurePermission(w, r, rbac.PermLicitacionAdvance)
	if !ok {
		return
	}
	var req avanzarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target := licitacion.Estado(strings.TrimSpace(strings.ToLower(req.Estado)))

	lic, err := a.deps.Licitaciones.AdvanceState(r.Context(), principal, id, target)
	if err != nil {
		handleLicitacionError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "licitacion.estado.advance", map[string]any{
		"licitacion_id": lic.ID,
		"school_id":     lic.SchoolID,
		"estado":        string(lic.Estado),
	})
	writeJSON(w, http.StatusOK, lic)
}

func (a *API) confirmarPublicacion(w http.ResponseWriter, r *http.Request, id int64) {
	principal, ok := a.ensurePermission(w, r, rbac.PermLicitacionAdvance)
	if !ok {
		return
	}
	lic, err := a.deps.Licitaciones.ConfirmPublicacion(r.Context(), principal, id)
	if err != nil {
		handleLicitacionError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "licitacion.publicacion.confirm", map[string]any{
		"licitacion_id": lic.ID,
		"school_id":     lic.SchoolID,
	})
	writeJSON(w, http.StatusOK, lic)
}

func handleLicitacionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, licitacion.ErrInvalidInput),
		errors.Is(err, licitacion.ErrEstadoInvalido),
		errors.Is(err, licitacion.ErrPrerrequisito):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, licitacion.ErrEstadoConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "permission denied")
	case errors.Is(err, licitacion.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
