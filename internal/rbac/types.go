package rbac

import "time"

// RoleType names one of the role families a user can hold.
type RoleType string

const (
	RoleAdmin               RoleType = "admin"
	RoleConsultor           RoleType = "consultor"
	RoleDocente             RoleType = "docente"
	RoleEquipoDirectivo     RoleType = "equipo_directivo"
	RoleCommunityManager    RoleType = "community_manager"
	RoleSupervisorDeRed     RoleType = "supervisor_de_red"
	RoleLiderComunidad      RoleType = "lider_comunidad"
	RoleLiderGeneracion     RoleType = "lider_generacion"
	RoleEstudiante          RoleType = "estudiante"
	RoleEncargadoLicitacion RoleType = "encargado_licitacion"
)

// ScopeKind classifies the organizational boundary a role applies to.
type ScopeKind string

const (
	ScopeGlobal     ScopeKind = "global"
	ScopeSchool     ScopeKind = "school"
	ScopeGeneration ScopeKind = "generation"
	ScopeCommunity  ScopeKind = "community"
)

// roleScopes maps each role type to the scope kinds it may legitimately carry.
// This is the single authority for the assignment/scope consistency invariant.
var roleScopes = map[RoleType][]ScopeKind{
	RoleAdmin:               {ScopeGlobal},
	RoleConsultor:           {ScopeGlobal, ScopeSchool},
	RoleDocente:             {ScopeSchool, ScopeCommunity},
	RoleEquipoDirectivo:     {ScopeSchool},
	RoleCommunityManager:    {ScopeCommunity},
	RoleSupervisorDeRed:     {ScopeGlobal},
	RoleLiderComunidad:      {ScopeCommunity},
	RoleLiderGeneracion:     {ScopeGeneration},
	RoleEstudiante:          {ScopeSchool, ScopeGeneration},
	RoleEncargadoLicitacion: {ScopeSchool},
}

// Known reports whether the role type is one the system understands.
// Unknown values in stored rows contribute no permissions but never abort
// resolution.
func (r RoleType) Known() bool {
	_, ok := roleScopes[r]
	return ok
}

// AllowsScope reports whether the role may carry the given scope kind.
func (r RoleType) AllowsScope(kind ScopeKind) bool {
	for _, allowed := range roleScopes[r] {
		if allowed == kind {
			return true
		}
	}
	return false
}

// Scope is the organizational boundary a role assignment applies to. All nil
// fields means global.
type Scope struct {
	SchoolID     *int64  `json:"school_id,omitempty"`
	GenerationID *int64  `json:"generation_id,omitempty"`
	CommunityID  *string `json:"community_id,omitempty"`
}

// Kind returns the scope classification. Scopes with more than one field set
// are rejected upstream by Service.UpsertAssignment.
func (s Scope) Kind() ScopeKind {
	switch {
	case s.SchoolID != nil:
		return ScopeSchool
	case s.GenerationID != nil:
		return ScopeGeneration
	case s.CommunityID != nil:
		return ScopeCommunity
	default:
		return ScopeGlobal
	}
}

// Assignment is one (user, role, scope) tuple. Deactivation flips Active;
// rows are never deleted.
type Assignment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Role       RoleType  `json:"role_type"`
	Scope      Scope     `json:"scope"`
	Active     bool      `json:"is_active"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Grant is one permission-matrix row. At most one active, non-test row per
// (role, key) pair is authoritative.
type Grant struct {
	Role          RoleType  `json:"role_type"`
	PermissionKey string    `json:"permission_key"`
	Granted       bool      `json:"granted"`
	IsTest        bool      `json:"is_test"`
	Active        bool      `json:"active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is the slice of the account record the resolver needs. LegacyAdmin is
// the break-glass flag carried over from the first deployment; role rows are
// the source of truth and the flag can only widen access, never narrow it.
type User struct {
	ID          string
	LegacyAdmin bool
}
