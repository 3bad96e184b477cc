package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"aulared.org/internal/licitacion"
	"aulared.org/internal/notify"
	"aulared.org/internal/rbac"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "role_type", "school_id", "generation_id", "community_id",
		"is_active", "assigned_by", "assigned_at",
	})
}

func TestUpsertAssignmentReactivatesExistingRow(t *testing.T) {
	store, mock := newMockStore(t)

	school := int64(5)
	mock.ExpectQuery("insert into role_assignments").
		WithArgs(sqlmock.AnyArg(), "user-1", "docente", school, nil, nil, "admin-9").
		WillReturnRows(assignmentRows().
			AddRow("asg_01", "user-1", "docente", school, nil, nil, true, "admin-9", time.Now()))

	saved, err := store.UpsertAssignment(context.Background(), rbac.Assignment{
		UserID:     "user-1",
		Role:       rbac.RoleDocente,
		Scope:      rbac.SchoolScope(school),
		AssignedBy: "admin-9",
	})
	if err != nil {
		t.Fatalf("UpsertAssignment: %v", err)
	}
	if saved.ID != "asg_01" || !saved.Active {
		t.Fatalf("unexpected assignment: %+v", saved)
	}
	if saved.Scope.SchoolID == nil || *saved.Scope.SchoolID != school {
		t.Fatalf("school scope lost: %+v", saved.Scope)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertAssignmentUnknownUserMapsToNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into role_assignments").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err := store.UpsertAssignment(context.Background(), rbac.Assignment{
		UserID: "ghost",
		Role:   rbac.RoleAdmin,
	})
	if !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivateAssignmentNoRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update role_assignments").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeactivateAssignment(context.Background(), "user-1", rbac.RoleDocente, rbac.SchoolScope(5))
	if !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetGrantUpdatesExistingRowAndAuditsOldValue(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select granted from permission_grants").
		WithArgs("docente", "licitaciones.read").
		WillReturnRows(sqlmock.NewRows([]string{"granted"}).AddRow(false))
	mock.ExpectExec("update permission_grants").
		WithArgs("docente", "licitaciones.read", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into permission_audit").
		WithArgs(sqlmock.AnyArg(), "docente", "licitaciones.read", sqlmock.AnyArg(), true, "admin-9").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	previous, err := store.SetGrant(context.Background(), rbac.RoleDocente, "licitaciones.read", true, "admin-9")
	if err != nil {
		t.Fatalf("SetGrant: %v", err)
	}
	if previous == nil || *previous != false {
		t.Fatalf("expected previous=false, got %v", previous)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetGrantInsertsWhenNoRowExists(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select granted from permission_grants").
		WithArgs("consultor", "rbac.roles.manage").
		WillReturnRows(sqlmock.NewRows([]string{"granted"}))
	mock.ExpectExec("insert into permission_grants").
		WithArgs("consultor", "rbac.roles.manage", true).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into permission_audit").
		WithArgs(sqlmock.AnyArg(), "consultor", "rbac.roles.manage", nil, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	previous, err := store.SetGrant(context.Background(), rbac.RoleConsultor, "rbac.roles.manage", true, "")
	if err != nil {
		t.Fatalf("SetGrant: %v", err)
	}
	if previous != nil {
		t.Fatalf("expected nil previous for a fresh grant, got %v", *previous)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func licitacionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "school_id", "titulo", "descripcion", "estado",
		"propuestas_count", "evaluacion_completa",
		"created_by", "created_at", "updated_at", "published_at",
	})
}

func TestAdvanceEstadoCompareAndSet(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("update licitaciones").
		WithArgs(int64(7), "borrador", "propuestas_pendientes", false).
		WillReturnRows(licitacionRows().
			AddRow(int64(7), int64(5), "Comedor 2026", "", "propuestas_pendientes", 0, false, "user-1", now, now, nil))

	saved, err := store.AdvanceEstado(context.Background(), 7,
		licitacion.EstadoBorrador, licitacion.EstadoPropuestasPendientes, false)
	if err != nil {
		t.Fatalf("AdvanceEstado: %v", err)
	}
	if saved.Estado != licitacion.EstadoPropuestasPendientes {
		t.Fatalf("unexpected estado: %s", saved.Estado)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdvanceEstadoConcurrentMoveIsConflict(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("update licitaciones").
		WillReturnRows(licitacionRows())
	mock.ExpectQuery("from licitaciones l").
		WithArgs(int64(7)).
		WillReturnRows(licitacionRows().
			AddRow(int64(7), int64(5), "Comedor 2026", "", "evaluacion_pendiente", 2, false, "user-1", now, now, nil))

	_, err := store.AdvanceEstado(context.Background(), 7,
		licitacion.EstadoBorrador, licitacion.EstadoPropuestasPendientes, false)
	if !errors.Is(err, licitacion.ErrEstadoConflict) {
		t.Fatalf("expected ErrEstadoConflict, got %v", err)
	}
}

func TestAdvanceEstadoMissingRecordIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("update licitaciones").
		WillReturnRows(licitacionRows())
	mock.ExpectQuery("from licitaciones l").
		WithArgs(int64(99)).
		WillReturnRows(licitacionRows())

	_, err := store.AdvanceEstado(context.Background(), 99,
		licitacion.EstadoBorrador, licitacion.EstadoPropuestasPendientes, false)
	if !errors.Is(err, licitacion.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTemplateByEventUnmapped(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from notification_triggers").
		WithArgs("unknown.event").
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "title_template", "description_template", "url_template", "category"}))

	_, err := store.TemplateByEvent(context.Background(), "unknown.event")
	if !errors.Is(err, notify.ErrNoTemplate) {
		t.Fatalf("expected ErrNoTemplate, got %v", err)
	}
}

func TestMarkReadForeignRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update notificaciones").
		WithArgs("ntf_01", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkRead(context.Background(), "ntf_01", "intruder")
	if !errors.Is(err, notify.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
