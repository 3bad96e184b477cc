package licitacion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aulared.org/internal/obs"
	"aulared.org/internal/rbac"
)

// Notifier announces estado changes to interested school staff. The contract
// is best-effort: implementations may fail, and the service only logs those
// failures — a transition is never rolled back because a notice was lost.
type Notifier interface {
	EstadoCambiado(ctx context.Context, lic Licitacion, previous Estado) error
}

// Service guards tender mutations with role/scope checks and drives the
// estado state machine.
type Service struct {
	store    Store
	notifier Notifier
}

// NewService constructs a Service. notifier may be nil.
func NewService(store Store, notifier Notifier) (*Service, error) {
	if store == nil {
		return nil, errors.New("licitacion store is required")
	}
	return &Service{store: store, notifier: notifier}, nil
}

// Create opens a tender in estado borrador for the given school. The actor
// must be an encargado_licitacion scoped to that school, or an admin.
func (s *Service) Create(ctx context.Context, principal rbac.Principal, l Licitacion) (Licitacion, error) {
	if l.SchoolID <= 0 {
		return Licitacion{}, fmt.Errorf("%w: school_id is required", ErrInvalidInput)
	}
	l.Titulo = strings.TrimSpace(l.Titulo)
	l.Descripcion = strings.TrimSpace(l.Descripcion)
	if !principal.AllowedForSchool(rbac.RoleEncargadoLicitacion, l.SchoolID) {
		return Licitacion{}, rbac.ErrUnauthorized
	}
	l.Estado = EstadoBorrador
	l.CreatedBy = principal.UserID
	return s.store.Create(ctx, l)
}

// Get returns a tender visible to the principal: admins see everything,
// anyone else needs an active assignment scoped to the owning school.
func (s *Service) Get(ctx context.Context, principal rbac.Principal, id int64) (Licitacion, error) {
	lic, err := s.store.Get(ctx, id)
	if err != nil {
		return Licitacion{}, err
	}
	if !s.canView(principal, lic.SchoolID) {
		return Licitacion{}, rbac.ErrUnauthorized
	}
	return lic, nil
}

// ListBySchool returns the school's tenders, subject to the same visibility.
func (s *Service) ListBySchool(ctx context.Context, principal rbac.Principal, schoolID int64) ([]Licitacion, error) {
	if schoolID <= 0 {
		return nil, fmt.Errorf("%w: school_id is required", ErrInvalidInput)
	}
	if !s.canView(principal, schoolID) {
		return nil, rbac.ErrUnauthorized
	}
	return s.store.ListBySchool(ctx, schoolID)
}

// AdvanceState moves a tender to target. Preconditions: the actor holds
// admin or encargado_licitacion scoped to the owning school; target is the
// next estado in the chain; the per-state prerequisites hold. On success the
// new estado is already persisted when the notifier runs, so a notification
// failure is logged and discarded.
func (s *Service) AdvanceState(ctx context.Context, principal rbac.Principal, id int64, target Estado) (Licitacion, error) {
	if !target.Known() {
		return Licitacion{}, fmt.Errorf("%w: %q", ErrEstadoInvalido, target)
	}

	lic, err := s.store.Get(ctx, id)
	if err != nil {
		return Licitacion{}, err
	}
	if !principal.AllowedForSchool(rbac.RoleEncargadoLicitacion, lic.SchoolID) {
		return Licitacion{}, rbac.ErrUnauthorized
	}

	next, ok := lic.Estado.Next()
	if !ok || next != target {
		return Licitacion{}, fmt.Errorf("%w: %s cannot advance to %s", ErrEstadoInvalido, lic.Estado, target)
	}
	if err := checkPrerequisites(lic, target); err != nil {
		return Licitacion{}, err
	}

	updated, err := s.store.AdvanceEstado(ctx, id, lic.Estado, target, target == EstadoPublicada)
	if err != nil {
		return Licitacion{}, err
	}

	s.notify(ctx, updated, lic.Estado)
	return updated, nil
}

// ConfirmPublicacion is the final transition from evaluacion_pendiente to
// publicada, kept as a named operation because it is triggered by a distinct
// confirmation step in the admin flow.
func (s *Service) ConfirmPublicacion(ctx context.Context, principal rbac.Principal, id int64) (Licitacion, error) {
	return s.AdvanceState(ctx, principal, id, EstadoPublicada)
}

func (s *Service) canView(principal rbac.Principal, schoolID int64) bool {
	if principal.IsAdmin() {
		return true
	}
	for _, a := range principal.Assignments {
		if a.Active && a.Scope.SchoolID != nil && *a.Scope.SchoolID == schoolID {
			return true
		}
	}
	return false
}

func checkPrerequisites(lic Licitacion, target Estado) error {
	switch target {
	case EstadoPropuestasPendientes:
		if lic.Titulo == "" || lic.Descripcion == "" {
			return fmt.Errorf("%w: titulo and descripcion are required before collecting propuestas", ErrPrerrequisito)
		}
	case EstadoEvaluacionPendiente:
		if lic.PropuestasCount == 0 {
			return fmt.Errorf("%w: at least one propuesta is required before evaluation", ErrPrerrequisito)
		}
	case EstadoPublicada:
		if !lic.EvaluacionCompleta {
			return fmt.Errorf("%w: evaluation must be completed before publishing", ErrPrerrequisito)
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, lic Licitacion, previous Estado) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.EstadoCambiado(ctx, lic, previous); err != nil {
		obs.Error("estado change notification failed", map[string]any{
			"licitacion_id": lic.ID,
			"school_id":     lic.SchoolID,
			"estado":        string(lic.Estado),
			"error":         err.Error(),
		})
	}
}
