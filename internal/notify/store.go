package notify

import "context"

// Store describes persistence for templates and notification rows.
type Store interface {
	// TemplateByEvent returns ErrNoTemplate when the event type is unmapped.
	TemplateByEvent(ctx context.Context, eventType string) (Template, error)

	Insert(ctx context.Context, n Notification) error

	ListForUser(ctx context.Context, userID string) ([]Notification, error)

	// MarkRead flips is_read for a notification owned by userID; rows owned
	// by anyone else yield ErrNotFound so ownership does not leak.
	MarkRead(ctx context.Context, id, userID string) error
}
