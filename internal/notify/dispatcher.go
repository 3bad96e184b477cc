package notify

import (
	"context"
	"errors"
	"strings"

	"aulared.org/internal/ids"
	"aulared.org/internal/obs"
)

// Dispatcher renders a trigger template for an event and inserts one
// notification row per recipient.
type Dispatcher struct {
	store Store
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("notify store is required")
	}
	return &Dispatcher{store: store}, nil
}

// Dispatch looks up the template for eventType, substitutes placeholders and
// inserts a row per recipient. It returns the number of rows written. A
// missing template is a logged no-op; insert failures are logged and skipped,
// never retried and never surfaced to the triggering operation.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, recipients []string, values map[string]string) int {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" || len(recipients) == 0 {
		return 0
	}

	tpl, err := d.store.TemplateByEvent(ctx, eventType)
	if err != nil {
		if errors.Is(err, ErrNoTemplate) {
			obs.CountNotification(eventType, "skipped")
			obs.Warn("no notification template for event", map[string]any{"event": eventType})
			return 0
		}
		obs.CountNotification(eventType, "failed")
		obs.Error("notification template lookup failed", map[string]any{
			"event": eventType,
			"error": err.Error(),
		})
		return 0
	}

	title := substitute(tpl.TitleTemplate, values)
	description := substitute(tpl.DescriptionTemplate, values)
	relatedURL := substitute(tpl.URLTemplate, values)

	sent := 0
	for _, userID := range recipients {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		n := Notification{
			ID:          ids.NewPrefixed("ntf"),
			UserID:      userID,
			EventType:   eventType,
			Category:    tpl.Category,
			Title:       title,
			Description: description,
			RelatedURL:  relatedURL,
		}
		if err := d.store.Insert(ctx, n); err != nil {
			obs.CountNotification(eventType, "failed")
			obs.Error("notification insert failed", map[string]any{
				"event":   eventType,
				"user_id": userID,
				"error":   err.Error(),
			})
			continue
		}
		obs.CountNotification(eventType, "sent")
		sent++
	}
	return sent
}

// substitute replaces every {placeholder} occurrence with its value. Plain
// string replacement, no escaping: values are pre-sanitized by callers.
func substitute(template string, values map[string]string) string {
	if template == "" || len(values) == 0 {
		return template
	}
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
