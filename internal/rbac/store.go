package rbac

import "context"

// Store describes persistence operations required by the RBAC subsystem.
type Store interface {
	// FindUser loads the account record. ErrNotFound means the user exists
	// only in the hosted auth service; the resolver treats that as a user
	// with no legacy flag.
	FindUser(ctx context.Context, userID string) (User, error)

	// ActiveAssignments returns every assignment with is_active = true.
	ActiveAssignments(ctx context.Context, userID string) ([]Assignment, error)

	// GrantsForRole returns active, non-test matrix rows for the role type.
	GrantsForRole(ctx context.Context, role RoleType) ([]Grant, error)

	// UpsertAssignment creates or reactivates the (user, role, scope) tuple.
	// Re-running with an identical tuple leaves exactly one active row.
	UpsertAssignment(ctx context.Context, a Assignment) (Assignment, error)

	// DeactivateAssignment flips is_active to false; the row is kept.
	DeactivateAssignment(ctx context.Context, userID string, role RoleType, scope Scope) error

	// ListGrants returns the full authoritative matrix (active, non-test).
	ListGrants(ctx context.Context) ([]Grant, error)

	// SetGrant mutates one matrix row in place and records a permission_audit
	// row with the previous value inside the same transaction. The returned
	// pointer is nil when the row did not exist before.
	SetGrant(ctx context.Context, role RoleType, key string, granted bool, actor string) (previous *bool, err error)
}
