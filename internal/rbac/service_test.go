package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aulared.org/internal/audit"
)

func TestUpsertAssignmentValidatesRoleAndScope(t *testing.T) {
	svc, err := NewService(&stubStore{}, nil)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = svc.UpsertAssignment(ctx, Assignment{UserID: "u1", Role: "intruso"})
	require.ErrorIs(t, err, ErrInvalidInput)

	// docente may not carry a generation scope.
	_, err = svc.UpsertAssignment(ctx, Assignment{UserID: "u1", Role: RoleDocente, Scope: GenerationScope(3)})
	require.ErrorIs(t, err, ErrInvalidInput)

	// two boundaries at once is always invalid.
	bad := Scope{SchoolID: ptrInt64(1), GenerationID: ptrInt64(2)}
	_, err = svc.UpsertAssignment(ctx, Assignment{UserID: "u1", Role: RoleDocente, Scope: bad})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpsertAssignment(ctx, Assignment{UserID: "", Role: RoleDocente, Scope: SchoolScope(1)})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpsertAssignmentNormalizesRole(t *testing.T) {
	var captured Assignment
	store := &stubStore{
		upsertFn: func(_ context.Context, a Assignment) (Assignment, error) {
			captured = a
			a.ID = "asg_1"
			a.AssignedAt = time.Now().UTC()
			return a, nil
		},
	}
	svc, err := NewService(store, nil)
	require.NoError(t, err)

	saved, err := svc.UpsertAssignment(context.Background(), Assignment{
		UserID: " u1 ",
		Role:   " Docente ",
		Scope:  SchoolScope(19),
	})
	require.NoError(t, err)
	require.Equal(t, RoleDocente, captured.Role)
	require.Equal(t, "u1", captured.UserID)
	require.True(t, captured.Active)
	require.Equal(t, "asg_1", saved.ID)
}

func TestSetGrantInvalidatesCache(t *testing.T) {
	prev := false
	store := &stubStore{
		setGrantFn: func(_ context.Context, _ RoleType, _ string, _ bool, _ string) (*bool, error) {
			return &prev, nil
		},
	}
	cache := NewMatrixCache(time.Minute)
	cache.Put(RoleDocente, []Grant{{Role: RoleDocente, PermissionKey: PermLicitacionRead, Granted: false, Active: true}})

	svc, err := NewService(store, cache)
	require.NoError(t, err)

	ctx := audit.WithActor(context.Background(), "admin-1")
	require.NoError(t, svc.SetGrant(ctx, RoleDocente, PermLicitacionRead, true))

	_, stillCached := cache.Get(RoleDocente)
	require.False(t, stillCached, "matrix cache entry must be dropped after an edit")
	require.Equal(t, "admin-1", store.lastSetGrantBy)
}

func TestSetGrantValidation(t *testing.T) {
	svc, err := NewService(&stubStore{}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, svc.SetGrant(context.Background(), "nadie", "x", true), ErrInvalidInput)
	require.ErrorIs(t, svc.SetGrant(context.Background(), RoleDocente, "  ", true), ErrInvalidInput)
}

func TestSetGrantPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	store := &stubStore{
		setGrantFn: func(context.Context, RoleType, string, bool, string) (*bool, error) {
			return nil, boom
		},
	}
	svc, err := NewService(store, nil)
	require.NoError(t, err)
	require.ErrorIs(t, svc.SetGrant(context.Background(), RoleDocente, PermLicitacionRead, true), boom)
}

func TestDeactivateAssignment(t *testing.T) {
	var gotUser string
	var gotRole RoleType
	store := &stubStore{
		deactivateFn: func(_ context.Context, userID string, role RoleType, _ Scope) error {
			gotUser, gotRole = userID, role
			return nil
		},
	}
	svc, err := NewService(store, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateAssignment(context.Background(), "u1", RoleDocente, SchoolScope(19)))
	require.Equal(t, "u1", gotUser)
	require.Equal(t, RoleDocente, gotRole)

	require.ErrorIs(t, svc.DeactivateAssignment(context.Background(), "", RoleDocente, Scope{}), ErrInvalidInput)
}

func ptrInt64(v int64) *int64 { return &v }
