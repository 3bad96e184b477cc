// Package pg implements the domain stores on PostgreSQL via the pgx stdlib
// driver.
package pg

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"aulared.org/internal/licitacion"
	"aulared.org/internal/notify"
	"aulared.org/internal/rbac"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store is the single PostgreSQL-backed implementation of the domain stores.
type Store struct {
	db *sql.DB
}

var (
	_ rbac.Store            = (*Store)(nil)
	_ licitacion.Store      = (*Store)(nil)
	_ notify.Store          = (*Store)(nil)
	_ notify.StaffDirectory = (*Store)(nil)
)

// Open connects to PostgreSQL with pool settings tuned for request-scoped
// query load.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying pool for readiness probes.
func (s *Store) DB() *sql.DB { return s.db }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
