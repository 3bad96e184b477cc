package pg

import (
	"context"
	"database/sql"
	"errors"

	"aulared.org/internal/licitacion"
)

// licitacionColumns is shared by every select so propuestas_count and the
// evaluation flag are always derived the same way.
const licitacionColumns = `
	l.id, l.school_id, l.titulo, coalesce(l.descripcion, ''), l.estado,
	(select count(*) from propuestas p where p.licitacion_id = l.id),
	coalesce(l.evaluacion_completa, false),
	l.created_by, l.created_at, l.updated_at, l.published_at
`

func (s *Store) Create(ctx context.Context, l licitacion.Licitacion) (licitacion.Licitacion, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into licitaciones (school_id, titulo, descripcion, estado, created_by)
		values ($1, $2, $3, $4, $5)
		returning id, school_id, titulo, coalesce(descripcion, ''), estado,
		          0, coalesce(evaluacion_completa, false),
		          created_by, created_at, updated_at, published_at
	`, l.SchoolID, l.Titulo, nullIfEmpty(l.Descripcion), string(l.Estado), l.CreatedBy)

	saved, err := scanLicitacion(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return licitacion.Licitacion{}, licitacion.ErrNotFound
		}
		return licitacion.Licitacion{}, err
	}
	return saved, nil
}

func (s *Store) Get(ctx context.Context, id int64) (licitacion.Licitacion, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+licitacionColumns+`
		from licitaciones l
		where l.id = $1
	`, id)
	saved, err := scanLicitacion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return licitacion.Licitacion{}, licitacion.ErrNotFound
	}
	if err != nil {
		return licitacion.Licitacion{}, err
	}
	return saved, nil
}

func (s *Store) ListBySchool(ctx context.Context, schoolID int64) ([]licitacion.Licitacion, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+licitacionColumns+`
		from licitaciones l
		where l.school_id = $1
		order by l.created_at desc
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []licitacion.Licitacion
	for rows.Next() {
		l, err := scanLicitacion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AdvanceEstado compares-and-sets the estado in one UPDATE. Zero rows means
// either the record is gone or a concurrent caller already moved it; a second
// lookup tells the two apart.
func (s *Store) AdvanceEstado(ctx context.Context, id int64, from, to licitacion.Estado, publish bool) (licitacion.Licitacion, error) {
	row := s.db.QueryRowContext(ctx, `
		update licitaciones l
		set estado = $3,
		    updated_at = now(),
		    published_at = case when $4 then now() else l.published_at end
		where l.id = $1 and l.estado = $2
		returning `+licitacionColumns+`
	`, id, string(from), string(to), publish)

	saved, err := scanLicitacion(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr == nil {
			return licitacion.Licitacion{}, licitacion.ErrEstadoConflict
		} else if !errors.Is(getErr, licitacion.ErrNotFound) {
			return licitacion.Licitacion{}, getErr
		}
		return licitacion.Licitacion{}, licitacion.ErrNotFound
	}
	if err != nil {
		return licitacion.Licitacion{}, err
	}
	return saved, nil
}

func scanLicitacion(row rowScanner) (licitacion.Licitacion, error) {
	var (
		l         licitacion.Licitacion
		published sql.NullTime
	)
	err := row.Scan(&l.ID, &l.SchoolID, &l.Titulo, &l.Descripcion, &l.Estado,
		&l.PropuestasCount, &l.EvaluacionCompleta,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt, &published)
	if err != nil {
		return licitacion.Licitacion{}, err
	}
	if published.Valid {
		l.PublishedAt = &published.Time
	}
	return l, nil
}
