package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aulared.org/internal/audit"
)

// Service provides the administrator-facing RBAC operations: assignment
// upserts/deactivations and audited permission-matrix edits.
type Service struct {
	store Store
	cache *MatrixCache
}

// NewService constructs a Service. cache may be nil.
func NewService(store Store, cache *MatrixCache) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	return &Service{store: store, cache: cache}, nil
}

// UpsertAssignment validates and persists a (user, role, scope) tuple.
// Re-running with an identical tuple is idempotent: one active row results.
func (s *Service) UpsertAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	a.UserID = strings.TrimSpace(a.UserID)
	if a.UserID == "" {
		return Assignment{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	a.Role = RoleType(strings.TrimSpace(strings.ToLower(string(a.Role))))
	if !a.Role.Known() {
		return Assignment{}, fmt.Errorf("%w: unknown role type %q", ErrInvalidInput, a.Role)
	}
	if err := validateScope(a.Role, a.Scope); err != nil {
		return Assignment{}, err
	}
	a.Active = true

	saved, err := s.store.UpsertAssignment(ctx, a)
	if err != nil {
		return Assignment{}, err
	}
	_ = audit.LogEvent(ctx, "rbac.assignment.upsert", map[string]any{
		"user_id":   saved.UserID,
		"role_type": string(saved.Role),
		"scope":     saved.Scope,
	})
	return saved, nil
}

// DeactivateAssignment flips is_active to false for the tuple.
func (s *Service) DeactivateAssignment(ctx context.Context, userID string, role RoleType, scope Scope) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	role = RoleType(strings.TrimSpace(strings.ToLower(string(role))))
	if !role.Known() {
		return fmt.Errorf("%w: unknown role type %q", ErrInvalidInput, role)
	}
	if err := s.store.DeactivateAssignment(ctx, userID, role, scope); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "rbac.assignment.deactivate", map[string]any{
		"user_id":   userID,
		"role_type": string(role),
		"scope":     scope,
	})
	return nil
}

// Assignments returns the user's active role tuples.
func (s *Service) Assignments(ctx context.Context, userID string) ([]Assignment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.ActiveAssignments(ctx, userID)
}

// Matrix returns the authoritative permission matrix.
func (s *Service) Matrix(ctx context.Context) ([]Grant, error) {
	return s.store.ListGrants(ctx)
}

// SetGrant mutates one matrix row in place. The store records a
// permission_audit row transactionally; this layer additionally emits a
// structured audit event with the old and new values and invalidates the
// cached rows for the role.
func (s *Service) SetGrant(ctx context.Context, role RoleType, key string, granted bool) error {
	role = RoleType(strings.TrimSpace(strings.ToLower(string(role))))
	if !role.Known() {
		return fmt.Errorf("%w: unknown role type %q", ErrInvalidInput, role)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: permission_key is required", ErrInvalidInput)
	}

	actor, _ := audit.ActorFromContext(ctx)
	previous, err := s.store.SetGrant(ctx, role, key, granted, actor)
	if err != nil {
		return err
	}
	s.cache.Invalidate(role)

	fields := map[string]any{
		"role_type":      string(role),
		"permission_key": key,
		"new":            granted,
	}
	if previous != nil {
		fields["old"] = *previous
	}
	_ = audit.LogEvent(ctx, "rbac.grant.update", fields)
	return nil
}

func validateScope(role RoleType, scope Scope) error {
	populated := 0
	if scope.SchoolID != nil {
		populated++
	}
	if scope.GenerationID != nil {
		populated++
	}
	if scope.CommunityID != nil {
		populated++
	}
	if populated > 1 {
		return fmt.Errorf("%w: assignment scope must name at most one boundary", ErrInvalidInput)
	}
	if !role.AllowsScope(scope.Kind()) {
		return fmt.Errorf("%w: role %s cannot carry %s scope", ErrInvalidInput, role, scope.Kind())
	}
	return nil
}
