package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aulared.org/internal/audit"
	"aulared.org/internal/obs"
)

// Resolver turns an authenticated user id into a Principal: active role
// tuples plus the union of permissions those roles grant.
type Resolver struct {
	store Store
	cache *MatrixCache
}

// NewResolver constructs a Resolver. cache may be nil to disable caching.
func NewResolver(store Store, cache *MatrixCache) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	return &Resolver{store: store, cache: cache}, nil
}

// Principal resolves roles and permissions for the user. A user with zero
// active assignments gets an empty permission set, not an error. Database
// failures propagate so callers can surface them as infrastructure errors.
func (r *Resolver) Principal(ctx context.Context, userID string) (Principal, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Principal{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}

	user, err := r.store.FindUser(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		// Account exists only in the hosted auth service; no legacy flag.
		user = User{ID: userID}
	case err != nil:
		return Principal{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	if user.LegacyAdmin {
		// Break-glass escape hatch: the legacy flag grants everything. Role
		// rows are the source of truth everywhere else, so every use of the
		// flag is logged and audited for eventual migration.
		obs.CountLegacyAdminBypass()
		obs.Warn("legacy admin flag short-circuited permission resolution", map[string]any{
			"user_id": userID,
		})
		_ = audit.LogEvent(ctx, "rbac.legacy_admin.bypass", map[string]any{
			"user_id": userID,
		})
		return BreakGlassPrincipal(userID), nil
	}

	assignments, err := r.store.ActiveAssignments(ctx, userID)
	if err != nil {
		return Principal{}, fmt.Errorf("load assignments for %s: %w", userID, err)
	}

	seen := make(map[RoleType]struct{}, len(assignments))
	var roles []RoleType
	for _, a := range assignments {
		if !a.Role.Known() {
			// Malformed role_type rows contribute nothing but never abort
			// resolution.
			obs.Warn("ignoring unknown role type", map[string]any{
				"user_id":   userID,
				"role_type": string(a.Role),
			})
			continue
		}
		if _, ok := seen[a.Role]; ok {
			continue
		}
		seen[a.Role] = struct{}{}
		roles = append(roles, a.Role)
	}

	permSet := make(map[string]struct{})
	for _, role := range roles {
		grants, err := r.grantsForRole(ctx, role)
		if err != nil {
			return Principal{}, fmt.Errorf("load grants for role %s: %w", role, err)
		}
		for _, g := range grants {
			if g.Granted {
				permSet[g.PermissionKey] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(permSet))
	for key := range permSet {
		keys = append(keys, key)
	}
	return NewPrincipal(userID, assignments, keys), nil
}

func (r *Resolver) grantsForRole(ctx context.Context, role RoleType) ([]Grant, error) {
	if grants, ok := r.cache.Get(role); ok {
		return grants, nil
	}
	grants, err := r.store.GrantsForRole(ctx, role)
	if err != nil {
		return nil, err
	}
	r.cache.Put(role, grants)
	return grants, nil
}
