package licitacion

import "errors"

var (
	ErrNotFound = errors.New("licitacion: not found")

	// ErrEstadoInvalido covers transitions outside the linear chain.
	ErrEstadoInvalido = errors.New("licitacion: invalid target state")

	// ErrPrerrequisito covers transitions whose preconditions are unmet.
	ErrPrerrequisito = errors.New("licitacion: transition prerequisites not met")

	// ErrEstadoConflict is returned when a concurrent request advanced the
	// record first; the compare-and-set update matched no row.
	ErrEstadoConflict = errors.New("licitacion: state changed concurrently")

	ErrInvalidInput = errors.New("licitacion: invalid input")
)
