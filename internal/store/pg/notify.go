package pg

import (
	"context"
	"database/sql"
	"errors"

	"aulared.org/internal/notify"
)

func (s *Store) TemplateByEvent(ctx context.Context, eventType string) (notify.Template, error) {
	var t notify.Template
	err := s.db.QueryRowContext(ctx, `
		select event_type, title_template, coalesce(description_template, ''),
		       coalesce(url_template, ''), coalesce(category, '')
		from notification_triggers
		where event_type = $1 and active = true
	`, eventType).Scan(&t.EventType, &t.TitleTemplate, &t.DescriptionTemplate, &t.URLTemplate, &t.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Template{}, notify.ErrNoTemplate
	}
	if err != nil {
		return notify.Template{}, err
	}
	return t, nil
}

func (s *Store) Insert(ctx context.Context, n notify.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		insert into notificaciones
			(id, user_id, event_type, category, title, description, related_url, is_read)
		values ($1, $2, $3, $4, $5, $6, $7, false)
	`, n.ID, n.UserID, n.EventType, nullIfEmpty(n.Category),
		n.Title, nullIfEmpty(n.Description), nullIfEmpty(n.RelatedURL))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return notify.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) ListForUser(ctx context.Context, userID string) ([]notify.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, event_type, coalesce(category, ''), title,
		       coalesce(description, ''), coalesce(related_url, ''),
		       is_read, created_at, read_at
		from notificaciones
		where user_id = $1
		order by created_at desc
		limit 200
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var (
			n      notify.Notification
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventType, &n.Category, &n.Title,
			&n.Description, &n.RelatedURL, &n.Read, &n.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips is_read only when the row belongs to userID, so a caller
// cannot probe other users' notification ids.
func (s *Store) MarkRead(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		update notificaciones
		set is_read = true, read_at = coalesce(read_at, now())
		where id = $1 and user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return notify.ErrNotFound
	}
	return nil
}
