package pg

import (
	"context"
	"database/sql"
	"errors"

	"aulared.org/internal/ids"
	"aulared.org/internal/rbac"
)

func (s *Store) FindUser(ctx context.Context, userID string) (rbac.User, error) {
	var user rbac.User
	err := s.db.QueryRowContext(ctx, `
		select id, coalesce(is_admin, false)
		from users
		where id = $1
	`, userID).Scan(&user.ID, &user.LegacyAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.User{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.User{}, err
	}
	return user, nil
}

func (s *Store) ActiveAssignments(ctx context.Context, userID string) ([]rbac.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, role_type, school_id, generation_id, community_id,
		       is_active, coalesce(assigned_by, ''), assigned_at
		from role_assignments
		where user_id = $1 and is_active = true
		order by assigned_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []rbac.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (s *Store) GrantsForRole(ctx context.Context, role rbac.RoleType) ([]rbac.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_type, permission_key, granted, is_test, active, updated_at
		from permission_grants
		where role_type = $1 and active = true and is_test = false
	`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []rbac.Grant
	for rows.Next() {
		var g rbac.Grant
		if err := rows.Scan(&g.Role, &g.PermissionKey, &g.Granted, &g.IsTest, &g.Active, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// UpsertAssignment relies on the nulls-not-distinct unique index over
// (user_id, role_type, school_id, generation_id, community_id): a repeat of
// an identical tuple reactivates the existing row instead of inserting a
// second one.
func (s *Store) UpsertAssignment(ctx context.Context, a rbac.Assignment) (rbac.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into role_assignments
			(id, user_id, role_type, school_id, generation_id, community_id, is_active, assigned_by)
		values ($1, $2, $3, $4, $5, $6, true, $7)
		on conflict (user_id, role_type, school_id, generation_id, community_id)
		do update set is_active = true, assigned_by = excluded.assigned_by
		returning id, user_id, role_type, school_id, generation_id, community_id,
		          is_active, coalesce(assigned_by, ''), assigned_at
	`, ids.NewPrefixed("asg"), a.UserID, string(a.Role),
		a.Scope.SchoolID, a.Scope.GenerationID, a.Scope.CommunityID,
		nullIfEmpty(a.AssignedBy))

	saved, err := scanAssignment(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return rbac.Assignment{}, rbac.ErrNotFound
		}
		return rbac.Assignment{}, err
	}
	return saved, nil
}

func (s *Store) DeactivateAssignment(ctx context.Context, userID string, role rbac.RoleType, scope rbac.Scope) error {
	res, err := s.db.ExecContext(ctx, `
		update role_assignments
		set is_active = false
		where user_id = $1 and role_type = $2
		  and school_id is not distinct from $3
		  and generation_id is not distinct from $4
		  and community_id is not distinct from $5
		  and is_active = true
	`, userID, string(role), scope.SchoolID, scope.GenerationID, scope.CommunityID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context) ([]rbac.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_type, permission_key, granted, is_test, active, updated_at
		from permission_grants
		where active = true and is_test = false
		order by role_type, permission_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []rbac.Grant
	for rows.Next() {
		var g rbac.Grant
		if err := rows.Scan(&g.Role, &g.PermissionKey, &g.Granted, &g.IsTest, &g.Active, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// SetGrant mutates the authoritative row in place and writes the audit row in
// the same transaction, so the old value can never be lost to a concurrent
// edit.
func (s *Store) SetGrant(ctx context.Context, role rbac.RoleType, key string, granted bool, actor string) (*bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var previous *bool
	var current bool
	err = tx.QueryRowContext(ctx, `
		select granted from permission_grants
		where role_type = $1 and permission_key = $2 and active = true and is_test = false
		for update
	`, string(role), key).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			insert into permission_grants (role_type, permission_key, granted, is_test, active)
			values ($1, $2, $3, false, true)
		`, string(role), key, granted); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return nil, rbac.ErrConflict
			}
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		previous = &current
		if _, err := tx.ExecContext(ctx, `
			update permission_grants
			set granted = $3, updated_at = now()
			where role_type = $1 and permission_key = $2 and active = true and is_test = false
		`, string(role), key, granted); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		insert into permission_audit (id, role_type, permission_key, old_value, new_value, changed_by)
		values ($1, $2, $3, $4, $5, $6)
	`, ids.NewPrefixed("aud"), string(role), key, previous, granted, nullIfEmpty(actor)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return previous, nil
}

// SchoolStaff returns the users notified about school events: directive
// teams, teachers and tender managers with an active assignment at the school.
func (s *Store) SchoolStaff(ctx context.Context, schoolID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct user_id
		from role_assignments
		where school_id = $1 and is_active = true
		  and role_type in ('equipo_directivo', 'docente', 'encargado_licitacion')
		order by user_id
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		staff = append(staff, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return staff, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (rbac.Assignment, error) {
	var (
		a         rbac.Assignment
		school    sql.NullInt64
		gen       sql.NullInt64
		community sql.NullString
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Role, &school, &gen, &community,
		&a.Active, &a.AssignedBy, &a.AssignedAt)
	if err != nil {
		return rbac.Assignment{}, err
	}
	if school.Valid {
		a.Scope.SchoolID = &school.Int64
	}
	if gen.Valid {
		a.Scope.GenerationID = &gen.Int64
	}
	if community.Valid {
		a.Scope.CommunityID = &community.String
	}
	return a, nil
}
