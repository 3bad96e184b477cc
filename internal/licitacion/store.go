package licitacion

import "context"

// Store describes persistence operations for tender records.
type Store interface {
	Create(ctx context.Context, l Licitacion) (Licitacion, error)
	Get(ctx context.Context, id int64) (Licitacion, error)
	ListBySchool(ctx context.Context, schoolID int64) ([]Licitacion, error)

	// AdvanceEstado updates the estado with a compare-and-set on the current
	// value. It returns ErrEstadoConflict when the record exists but its
	// estado no longer equals from, and ErrNotFound when it does not exist.
	// publish additionally stamps published_at.
	AdvanceEstado(ctx context.Context, id int64, from, to Estado, publish bool) (Licitacion, error)
}
