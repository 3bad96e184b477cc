// Package licitacion implements the tender lifecycle: school-owned records
// progressing through a fixed sequence of estados behind role and scope guards.
package licitacion

import "time"

// Estado is one stage of the tender lifecycle.
type Estado string

const (
	EstadoBorrador             Estado = "borrador"
	EstadoPropuestasPendientes Estado = "propuestas_pendientes"
	EstadoEvaluacionPendiente  Estado = "evaluacion_pendiente"
	EstadoPublicada            Estado = "publicada"
)

// nextEstado encodes the linear chain; publicada is terminal.
var nextEstado = map[Estado]Estado{
	EstadoBorrador:             EstadoPropuestasPendientes,
	EstadoPropuestasPendientes: EstadoEvaluacionPendiente,
	EstadoEvaluacionPendiente:  EstadoPublicada,
}

// Known reports whether the estado is part of the lifecycle.
func (e Estado) Known() bool {
	if e == EstadoPublicada {
		return true
	}
	_, ok := nextEstado[e]
	return ok
}

// Next returns the only estado reachable from e, if any.
func (e Estado) Next() (Estado, bool) {
	next, ok := nextEstado[e]
	return next, ok
}

// Licitacion is a tender record owned by exactly one school.
type Licitacion struct {
	ID          int64  `json:"id"`
	SchoolID    int64  `json:"school_id"`
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion,omitempty"`
	Estado      Estado `json:"estado"`

	// PropuestasCount and EvaluacionCompleta feed the transition
	// prerequisites; both are derived by the store.
	PropuestasCount    int  `json:"propuestas_count"`
	EvaluacionCompleta bool `json:"evaluacion_completa"`

	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
