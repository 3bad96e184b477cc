package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"aulared.org/internal/rbac"
)

type assignmentRequest struct {
	UserID       string  `json:"user_id"`
	RoleType     string  `json:"role_type"`
	SchoolID     *int64  `json:"school_id,omitempty"`
	GenerationID *int64  `json:"generation_id,omitempty"`
	CommunityID  *string `json:"community_id,omitempty"`
}

type setGrantRequest struct {
	RoleType      string `json:"role_type"`
	PermissionKey string `json:"permission_key"`
	Granted       bool   `json:"granted"`
}

func (r assignmentRequest) scope() rbac.Scope {
	return rbac.Scope{
		SchoolID:     r.SchoolID,
		GenerationID: r.GenerationID,
		CommunityID:  r.CommunityID,
	}
}

// adminGate hides the RBAC administration surface behind the feature flag:
// when disabled the endpoints answer 404 regardless of authentication, so the
// surface is indistinguishable from an unknown route.
func (a *API) adminGate(w http.ResponseWriter, r *http.Request) bool {
	if !a.deps.RBACAdminEnabled {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return false
	}
	return true
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if !a.adminGate(w, r) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		a.upsertAssignment(w, r)
	case http.MethodDelete:
		a.deactivateAssignment(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) upsertAssignment(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.ensurePermission(w, r, rbac.PermRolesManage); !ok {
		return
	}
	var req assignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	saved, err := a.deps.RBAC.UpsertAssignment(r.Context(), rbac.Assignment{
		UserID:     req.UserID,
		Role:       rbac.RoleType(req.RoleType),
		Scope:      req.scope(),
		AssignedBy: actor.UserID,
	})
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (a *API) deactivateAssignment(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.ensurePermission(w, r, rbac.PermRolesManage); !ok {
		return
	}
	var req assignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.deps.RBAC.DeactivateAssignment(r.Context(), req.UserID, rbac.RoleType(req.RoleType), req.scope())
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID := parts[0]

	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	// Users may always read their own roles and permissions; reading anyone
	// else's requires the management permission.
	if principal.UserID != userID && !principal.HasPermission(rbac.PermRolesManage) {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}

	switch parts[1] {
	case "roles":
		assignments, err := a.deps.RBAC.Assignments(r.Context(), userID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		if assignments == nil {
			assignments = []rbac.Assignment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id": userID,
			"roles":   assignments,
		})
	case "permissions":
		resolved, err := a.deps.Resolver.Principal(r.Context(), userID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		perms := resolved.Permissions()
		if perms == nil {
			perms = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":     userID,
			"permissions": perms,
			"break_glass": resolved.BreakGlass,
		})
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if !a.adminGate(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listMatrix(w, r)
	case http.MethodPut:
		a.setGrant(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) listMatrix(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.ensurePermission(w, r, rbac.PermPermissionsManage); !ok {
		return
	}
	grants, err := a.deps.RBAC.Matrix(r.Context())
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	if grants == nil {
		grants = []rbac.Grant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (a *API) setGrant(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.ensurePermission(w, r, rbac.PermPermissionsManage); !ok {
		return
	}
	var req setGrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.deps.RBAC.SetGrant(r.Context(), rbac.RoleType(req.RoleType), req.PermissionKey, req.Granted)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleRBACError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rbac.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "permission denied")
	case errors.Is(err, rbac.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, rbac.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
