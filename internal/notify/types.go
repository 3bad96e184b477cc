// Package notify turns domain events into per-user notification rows through
// stored trigger templates. Everything here is best-effort: a lost
// notification is logged, never escalated to the operation that fired it.
package notify

import (
	"errors"
	"time"
)

var (
	// ErrNoTemplate means no trigger template matches an event type.
	// Dispatch treats it as a logged no-op.
	ErrNoTemplate = errors.New("notify: no template for event")

	ErrNotFound = errors.New("notify: not found")
)

// Template is a trigger template, read-only at runtime. Template strings use
// a {placeholder} syntax substituted by plain string replacement; values must
// be pre-sanitized by the caller.
type Template struct {
	EventType           string `json:"event_type"`
	TitleTemplate       string `json:"title_template"`
	DescriptionTemplate string `json:"description_template"`
	URLTemplate         string `json:"url_template"`
	Category            string `json:"category"`
}

// Notification is one rendered notice owned by a single user.
type Notification struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	EventType   string     `json:"event_type"`
	Category    string     `json:"category,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	RelatedURL  string     `json:"related_url,omitempty"`
	Read        bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}
