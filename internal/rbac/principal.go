package rbac

// Principal is an authenticated user with resolved role assignments and the
// union of permissions those roles grant.
type Principal struct {
	UserID      string
	Assignments []Assignment

	// BreakGlass marks principals resolved through the legacy admin flag or
	// the service credential. They hold every permission and bypass scope
	// checks; every resolution of such a principal is logged.
	BreakGlass bool

	permissions map[string]struct{}
}

// NewPrincipal constructs a principal with a preloaded permission set.
func NewPrincipal(userID string, assignments []Assignment, permissionKeys []string) Principal {
	set := make(map[string]struct{}, len(permissionKeys))
	for _, key := range permissionKeys {
		set[key] = struct{}{}
	}
	return Principal{UserID: userID, Assignments: assignments, permissions: set}
}

// BreakGlassPrincipal constructs an all-powerful principal. Callers are
// responsible for auditing its use.
func BreakGlassPrincipal(userID string) Principal {
	return Principal{UserID: userID, BreakGlass: true}
}

// HasPermission reports whether any of the principal's roles grants the key.
// Missing matrix rows resolve to false.
func (p Principal) HasPermission(key string) bool {
	if p.BreakGlass {
		return true
	}
	_, ok := p.permissions[key]
	return ok
}

// Permissions returns the granted permission keys (copy, unordered).
func (p Principal) Permissions() []string {
	out := make([]string, 0, len(p.permissions))
	for key := range p.permissions {
		out = append(out, key)
	}
	return out
}

// IsAdmin reports whether the principal holds an active admin role.
func (p Principal) IsAdmin() bool {
	if p.BreakGlass {
		return true
	}
	for _, a := range p.Assignments {
		if a.Active && a.Role == RoleAdmin {
			return true
		}
	}
	return false
}

// AllowedInScope applies the scope check: admins pass unconditionally, anyone
// else needs an active assignment of the required role whose scope covers the
// resource's owning scope.
func (p Principal) AllowedInScope(required RoleType, resource Scope) bool {
	if p.IsAdmin() {
		return true
	}
	for _, a := range p.Assignments {
		if !a.Active || a.Role != required {
			continue
		}
		if a.Scope.Matches(resource) {
			return true
		}
	}
	return false
}

// AllowedForSchool is AllowedInScope for school-owned resources where the id
// may arrive as a number or a string; it is normalized before comparison.
func (p Principal) AllowedForSchool(required RoleType, schoolID any) bool {
	if p.IsAdmin() {
		return true
	}
	for _, a := range p.Assignments {
		if !a.Active || a.Role != required || a.Scope.SchoolID == nil {
			continue
		}
		if sameID(*a.Scope.SchoolID, schoolID) {
			return true
		}
	}
	return false
}
