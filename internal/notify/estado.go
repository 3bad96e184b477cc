package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"aulared.org/internal/licitacion"
	"aulared.org/internal/obs"
)

// EventLicitacionEstado is the trigger key for tender state transitions.
const EventLicitacionEstado = "licitacion.estado_cambiado"

const dispatchTimeout = 10 * time.Second

// StaffDirectory resolves which users should hear about school events.
type StaffDirectory interface {
	SchoolStaff(ctx context.Context, schoolID int64) ([]string, error)
}

// EstadoNotifier implements licitacion.Notifier by dispatching in a detached
// goroutine with its own deadline. The triggering request never waits for, or
// learns about, a dispatch failure; EstadoCambiado only errors when the
// recipient lookup fails synchronously.
type EstadoNotifier struct {
	dispatcher *Dispatcher
	staff      StaffDirectory

	wg sync.WaitGroup
}

var _ licitacion.Notifier = (*EstadoNotifier)(nil)

// NewEstadoNotifier constructs an EstadoNotifier.
func NewEstadoNotifier(dispatcher *Dispatcher, staff StaffDirectory) *EstadoNotifier {
	return &EstadoNotifier{dispatcher: dispatcher, staff: staff}
}

// EstadoCambiado notifies the school staff about a transition.
func (n *EstadoNotifier) EstadoCambiado(ctx context.Context, lic licitacion.Licitacion, previous licitacion.Estado) error {
	recipients, err := n.staff.SchoolStaff(ctx, lic.SchoolID)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	values := map[string]string{
		"licitacion_id":   strconv.FormatInt(lic.ID, 10),
		"school_id":       strconv.FormatInt(lic.SchoolID, 10),
		"titulo":          lic.Titulo,
		"estado":          string(lic.Estado),
		"estado_anterior": string(previous),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				obs.Error("notification dispatch panicked", map[string]any{"panic": r})
			}
		}()
		// Detached from the request context: the transition already
		// committed, so the dispatch gets its own deadline.
		dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		n.dispatcher.Dispatch(dctx, EventLicitacionEstado, recipients, values)
	}()
	return nil
}

// Wait blocks until in-flight dispatches finish. Called on shutdown and in
// tests.
func (n *EstadoNotifier) Wait() {
	n.wg.Wait()
}
