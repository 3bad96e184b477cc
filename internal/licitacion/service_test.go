package licitacion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aulared.org/internal/rbac"
)

type memStore struct {
	records map[int64]Licitacion
	nextID  int64

	advanceErr error
	getErr     error
}

func newMemStore(records ...Licitacion) *memStore {
	s := &memStore{records: make(map[int64]Licitacion), nextID: 1}
	for _, l := range records {
		if l.ID >= s.nextID {
			s.nextID = l.ID + 1
		}
		s.records[l.ID] = l
	}
	return s
}

func (s *memStore) Create(_ context.Context, l Licitacion) (Licitacion, error) {
	l.ID = s.nextID
	s.nextID++
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	s.records[l.ID] = l
	return l, nil
}

func (s *memStore) Get(_ context.Context, id int64) (Licitacion, error) {
	if s.getErr != nil {
		return Licitacion{}, s.getErr
	}
	l, ok := s.records[id]
	if !ok {
		return Licitacion{}, ErrNotFound
	}
	return l, nil
}

func (s *memStore) ListBySchool(_ context.Context, schoolID int64) ([]Licitacion, error) {
	var out []Licitacion
	for _, l := range s.records {
		if l.SchoolID == schoolID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) AdvanceEstado(_ context.Context, id int64, from, to Estado, publish bool) (Licitacion, error) {
	if s.advanceErr != nil {
		return Licitacion{}, s.advanceErr
	}
	l, ok := s.records[id]
	if !ok {
		return Licitacion{}, ErrNotFound
	}
	if l.Estado != from {
		return Licitacion{}, ErrEstadoConflict
	}
	l.Estado = to
	l.UpdatedAt = time.Now().UTC()
	if publish {
		now := time.Now().UTC()
		l.PublishedAt = &now
	}
	s.records[id] = l
	return l, nil
}

type recordingNotifier struct {
	calls int
	err   error
}

func (n *recordingNotifier) EstadoCambiado(context.Context, Licitacion, Estado) error {
	n.calls++
	return n.err
}

func encargado(school int64) rbac.Principal {
	return rbac.NewPrincipal("enc-1", []rbac.Assignment{
		{UserID: "enc-1", Role: rbac.RoleEncargadoLicitacion, Scope: rbac.SchoolScope(school), Active: true},
	}, []string{rbac.PermLicitacionAdvance, rbac.PermLicitacionCreate, rbac.PermLicitacionRead})
}

func adminPrincipal() rbac.Principal {
	return rbac.NewPrincipal("admin-1", []rbac.Assignment{
		{UserID: "admin-1", Role: rbac.RoleAdmin, Active: true},
	}, nil)
}

func docente(school int64) rbac.Principal {
	return rbac.NewPrincipal("doc-1", []rbac.Assignment{
		{UserID: "doc-1", Role: rbac.RoleDocente, Scope: rbac.SchoolScope(school), Active: true},
	}, []string{rbac.PermLicitacionRead})
}

func TestAdvanceStateHappyChain(t *testing.T) {
	store := newMemStore(Licitacion{
		ID: 1, SchoolID: 5, Titulo: "Comedor escolar", Descripcion: "Servicio anual",
		Estado: EstadoBorrador,
	})
	notifier := &recordingNotifier{}
	svc, err := NewService(store, notifier)
	require.NoError(t, err)

	ctx := context.Background()
	actor := encargado(5)

	lic, err := svc.AdvanceState(ctx, actor, 1, EstadoPropuestasPendientes)
	require.NoError(t, err)
	require.Equal(t, EstadoPropuestasPendientes, lic.Estado)

	// Propuestas arrive and evaluation completes out of band.
	lic.PropuestasCount = 3
	store.records[1] = lic

	lic, err = svc.AdvanceState(ctx, actor, 1, EstadoEvaluacionPendiente)
	require.NoError(t, err)

	lic.EvaluacionCompleta = true
	store.records[1] = lic

	lic, err = svc.ConfirmPublicacion(ctx, actor, 1)
	require.NoError(t, err)
	require.Equal(t, EstadoPublicada, lic.Estado)
	require.NotNil(t, lic.PublishedAt)
	require.Equal(t, 3, notifier.calls)
}

func TestAdvanceStateUnmetPrerequisiteLeavesStateUnchanged(t *testing.T) {
	store := newMemStore(Licitacion{
		ID: 1, SchoolID: 5, Titulo: "Sin descripción", Estado: EstadoBorrador,
	})
	svc, err := NewService(store, nil)
	require.NoError(t, err)

	_, err = svc.AdvanceState(context.Background(), encargado(5), 1, EstadoPropuestasPendientes)
	require.ErrorIs(t, err, ErrPrerrequisito)

	stored, _ := store.Get(context.Background(), 1)
	require.Equal(t, EstadoBorrador, stored.Estado, "stored estado must be unchanged")
}

func TestAdvanceStateSkippingStatesIsRejected(t *testing.T) {
	store := newMemStore(Licitacion{
		ID: 1, SchoolID: 5, Titulo: "t", Descripcion: "d", Estado: EstadoBorrador,
	})
	svc, _ := NewService(store, nil)

	_, err := svc.AdvanceState(context.Background(), encargado(5), 1, EstadoPublicada)
	require.ErrorIs(t, err, ErrEstadoInvalido)

	_, err = svc.AdvanceState(context.Background(), encargado(5), 1, Estado("archivada"))
	require.ErrorIs(t, err, ErrEstadoInvalido)
}

func TestAdvanceStatePersistsDespiteNotificationFailure(t *testing.T) {
	store := newMemStore(Licitacion{
		ID: 1, SchoolID: 5, Titulo: "t", Descripcion: "d", Estado: EstadoBorrador,
	})
	notifier := &recordingNotifier{err: errors.New("smtp exploded")}
	svc, _ := NewService(store, notifier)

	lic, err := svc.AdvanceState(context.Background(), encargado(5), 1, EstadoPropuestasPendientes)
	require.NoError(t, err, "notification failure must not surface")
	require.Equal(t, EstadoPropuestasPendientes, lic.Estado)

	stored, _ := store.Get(context.Background(), 1)
	require.Equal(t, EstadoPropuestasPendientes, stored.Estado, "transition must persist")
	require.Equal(t, 1, notifier.calls)
}

func TestAdvanceStateScopeDenied(t *testing.T) {
	store := newMemStore(Licitacion{
		ID: 1, SchoolID: 5, Titulo: "t", Descripcion: "d", Estado: EstadoBorrador,
	})
	svc, _ := NewService(store, nil)

	// docente at school 19 against a school-5 tender: denied, no mutation.
	_, err := svc.AdvanceState(context.Background(), docente(19), 1, EstadoPropuestasPendientes)
	require.ErrorIs(t, err, rbac.ErrUnauthorized)

	// even the right role at the wrong school is denied.
	_, err = svc.AdvanceState(context.Background(), encargado(19), 1, EstadoPropuestasPendientes)
	require.ErrorIs(t, err, rbac.ErrUnauthorized)

	stored, _ := store.Get(context.Background(), 1)
	require.Equal(t, EstadoBorrador, stored.Estado)
}

func TestAdvanceStateAdminBypassesScope(t *testing.T) {
	store := newMemStore(Licitacion{
		ID: 1, SchoolID: 999, Titulo: "t", Descripcion: "d", Estado: EstadoBorrador,
	})
	svc, _ := NewService(store, nil)

	lic, err := svc.AdvanceState(context.Background(), adminPrincipal(), 1, EstadoPropuestasPendientes)
	require.NoError(t, err)
	require.Equal(t, EstadoPropuestasPendientes, lic.Estado)
}

func TestAdvanceStateNotFound(t *testing.T) {
	svc, _ := NewService(newMemStore(), nil)
	_, err := svc.AdvanceState(context.Background(), adminPrincipal(), 42, EstadoPropuestasPendientes)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdvanceStateConcurrentConflict(t *testing.T) {
	store := newMemStore(Licitacion{
		ID: 1, SchoolID: 5, Titulo: "t", Descripcion: "d", Estado: EstadoBorrador,
	})
	store.advanceErr = ErrEstadoConflict
	svc, _ := NewService(store, nil)

	_, err := svc.AdvanceState(context.Background(), encargado(5), 1, EstadoPropuestasPendientes)
	require.ErrorIs(t, err, ErrEstadoConflict)
}

func TestCreateRequiresScope(t *testing.T) {
	store := newMemStore()
	svc, _ := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, docente(5), Licitacion{SchoolID: 5, Titulo: "x"})
	require.ErrorIs(t, err, rbac.ErrUnauthorized)

	lic, err := svc.Create(ctx, encargado(5), Licitacion{SchoolID: 5, Titulo: "x"})
	require.NoError(t, err)
	require.Equal(t, EstadoBorrador, lic.Estado)
	require.Equal(t, "enc-1", lic.CreatedBy)

	_, err = svc.Create(ctx, encargado(5), Licitacion{SchoolID: 0})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetVisibility(t *testing.T) {
	store := newMemStore(Licitacion{ID: 1, SchoolID: 5, Estado: EstadoBorrador})
	svc, _ := NewService(store, nil)
	ctx := context.Background()

	// school members (any role) can view.
	_, err := svc.Get(ctx, docente(5), 1)
	require.NoError(t, err)

	// outsiders cannot.
	_, err = svc.Get(ctx, docente(19), 1)
	require.ErrorIs(t, err, rbac.ErrUnauthorized)

	_, err = svc.Get(ctx, adminPrincipal(), 1)
	require.NoError(t, err)
}
