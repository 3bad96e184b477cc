package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"aulared.org/internal/licitacion"
	"aulared.org/internal/notify"
	"aulared.org/internal/rbac"
)

func schoolStore() *memStore {
	store := adminStore()
	store.grant(rbac.RoleEncargadoLicitacion,
		rbac.PermLicitacionCreate, rbac.PermLicitacionRead, rbac.PermLicitacionAdvance)
	store.grant(rbac.RoleDocente, rbac.PermLicitacionRead, rbac.PermLicitacionAdvance)
	store.assign("encargado-5", rbac.RoleEncargadoLicitacion, rbac.SchoolScope(5))
	store.assign("prof-19", rbac.RoleDocente, rbac.SchoolScope(19))
	return store
}

func TestCreateLicitacionScopedToOwnSchool(t *testing.T) {
	api := newTestAPI(t, schoolStore())
	encargado := api.authHeader("encargado-5")

	resp := api.post("/v1/licitaciones", map[string]any{
		"school_id":   5,
		"titulo":      "Comedor escolar 2026",
		"descripcion": "Concesión anual",
	}, encargado)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/licitaciones/1" {
		t.Fatalf("unexpected Location: %q", loc)
	}
	created := decode[licitacion.Licitacion](t, resp)
	if created.Estado != licitacion.EstadoBorrador {
		t.Fatalf("expected borrador, got %s", created.Estado)
	}
	if created.CreatedBy != "encargado-5" {
		t.Fatalf("unexpected created_by: %s", created.CreatedBy)
	}

	// Same role, different school: denied.
	resp = api.post("/v1/licitaciones", map[string]any{
		"school_id": 19,
		"titulo":    "Laboratorio",
	}, encargado)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign school, got %d", resp.StatusCode)
	}
}

func TestAdvanceDeniedForWrongScopeDoesNotMutate(t *testing.T) {
	store := schoolStore()
	id := store.addLicitacion(licitacion.Licitacion{
		SchoolID:    5,
		Titulo:      "Comedor escolar 2026",
		Descripcion: "Concesión anual",
	})
	api := newTestAPI(t, store)

	// A docente at school 19 holds the advance permission but no scope over
	// school 5.
	resp := api.post("/v1/licitaciones/1/avanzar", map[string]any{
		"estado": "propuestas_pendientes",
	}, api.authHeader("prof-19"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	lic, _ := store.Get(context.Background(), id)
	if lic.Estado != licitacion.EstadoBorrador {
		t.Fatalf("estado mutated despite denial: %s", lic.Estado)
	}
}

func TestAdminAdvancesAnySchool(t *testing.T) {
	store := schoolStore()
	store.templates[notify.EventLicitacionEstado] = notify.Template{
		EventType:     notify.EventLicitacionEstado,
		TitleTemplate: "Licitación {titulo}: {estado}",
	}
	id := store.addLicitacion(licitacion.Licitacion{
		SchoolID:    19,
		Titulo:      "Laboratorio",
		Descripcion: "Equipamiento",
	})
	api := newTestAPI(t, store)
	admin := api.authHeader("admin-1")

	resp := api.post("/v1/licitaciones/1/avanzar", map[string]any{
		"estado": "propuestas_pendientes",
	}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	advanced := decode[licitacion.Licitacion](t, resp)
	if advanced.Estado != licitacion.EstadoPropuestasPendientes {
		t.Fatalf("unexpected estado: %s", advanced.Estado)
	}

	// Staff at the owning school got a rendered notification.
	api.notifier.Wait()
	notifs, _ := store.ListForUser(context.Background(), "prof-19")
	if len(notifs) != 1 {
		t.Fatalf("expected one notification for school staff, got %d", len(notifs))
	}
	if notifs[0].Title != "Licitación Laboratorio: propuestas_pendientes" {
		t.Fatalf("unexpected title: %q", notifs[0].Title)
	}

	lic, _ := store.Get(context.Background(), id)
	if lic.Estado != licitacion.EstadoPropuestasPendientes {
		t.Fatalf("estado not persisted: %s", lic.Estado)
	}
}

func TestAdvanceRejectsSkippedState(t *testing.T) {
	store := schoolStore()
	store.addLicitacion(licitacion.Licitacion{
		SchoolID:    5,
		Titulo:      "Comedor escolar 2026",
		Descripcion: "Concesión anual",
	})
	api := newTestAPI(t, store)

	resp := api.post("/v1/licitaciones/1/avanzar", map[string]any{
		"estado": "publicada",
	}, api.authHeader("encargado-5"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConfirmPublicacionRequiresCompleteEvaluation(t *testing.T) {
	store := schoolStore()
	store.addLicitacion(licitacion.Licitacion{
		SchoolID:    5,
		Titulo:      "Comedor escolar 2026",
		Descripcion: "Concesión anual",
		Estado:      licitacion.EstadoEvaluacionPendiente,
	})
	api := newTestAPI(t, store)
	encargado := api.authHeader("encargado-5")

	resp := api.post("/v1/licitaciones/1/confirmar-publicacion", nil, encargado)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 while evaluation incomplete, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	store.mu.Lock()
	lic := store.lics[1]
	lic.EvaluacionCompleta = true
	store.lics[1] = lic
	store.mu.Unlock()

	resp = api.post("/v1/licitaciones/1/confirmar-publicacion", nil, encargado)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	published := decode[licitacion.Licitacion](t, resp)
	if published.Estado != licitacion.EstadoPublicada || published.PublishedAt == nil {
		t.Fatalf("expected published tender with timestamp: %+v", published)
	}
}

func TestListLicitacionesVisibility(t *testing.T) {
	store := schoolStore()
	store.addLicitacion(licitacion.Licitacion{SchoolID: 5, Titulo: "Comedor"})
	store.addLicitacion(licitacion.Licitacion{SchoolID: 19, Titulo: "Laboratorio"})
	api := newTestAPI(t, store)

	resp := api.get("/v1/licitaciones", url.Values{"school_id": []string{"5"}}, api.authHeader("encargado-5"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if len(payload["items"].([]any)) != 1 {
		t.Fatalf("expected one item, got %v", payload["items"])
	}

	resp = api.get("/v1/licitaciones", url.Values{"school_id": []string{"19"}}, api.authHeader("encargado-5"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign school, got %d", resp.StatusCode)
	}
}

func TestGetLicitacionNotFound(t *testing.T) {
	api := newTestAPI(t, schoolStore())

	resp := api.get("/v1/licitaciones/999", nil, api.authHeader("admin-1"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
