package rbac

import "errors"

var (
	ErrNotFound     = errors.New("rbac: not found")
	ErrConflict     = errors.New("rbac: resource conflict")
	ErrInvalidInput = errors.New("rbac: invalid input")

	// ErrUnauthorized is returned for scope or permission denials. Handlers
	// must surface it with a generic message distinct from not-found so that
	// resource existence does not leak.
	ErrUnauthorized = errors.New("rbac: unauthorized")
)
