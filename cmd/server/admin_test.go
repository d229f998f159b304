package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/vklymenko/castcalc/internal/seed"
)

func newAdminRouter(srv *server) chi.Router {
	r := chi.NewRouter()
	r.Post("/admin/details/{id}", srv.handleAdminDetailUpdate)
	return r
}

func adminPost(t *testing.T, router chi.Router, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, r)
	return rr
}

func TestHandleAdminDetailUpdate(t *testing.T) {
	srv := newTestApp(t)
	if _, err := seed.Run(srv.db, seed.Config{}); err != nil {
		t.Fatalf("seed reference data: %v", err)
	}
	router := newAdminRouter(srv)

	form := url.Values{
		"mass_kg":   {"8000"},
		"available": {"1"},
		"notes":     {"remeasured"},
	}
	rr := adminPost(t, router, "/admin/details/1", form)
	location := assertRedirect(t, rr, "/admin/details")
	if location.Query().Get("success") == "" {
		t.Fatalf("expected a success message, got error %q", location.Query().Get("error"))
	}

	var mass, notes string
	var available bool
	err := srv.db.QueryRow(`SELECT mass_kg, available, notes FROM details WHERE id = 1`).Scan(&mass, &available, &notes)
	if err != nil {
		t.Fatalf("query updated detail: %v", err)
	}
	if mass != "8000" || !available || notes != "remeasured" {
		t.Fatalf("detail not updated: mass=%q available=%v notes=%q", mass, available, notes)
	}

	// The in-memory registry is reloaded so new sessions see the edit.
	got, err := srv.registry().MassOf("Frame")
	if err != nil {
		t.Fatalf("MassOf after reload: %v", err)
	}
	if got.String() != "8000" {
		t.Fatalf("registry mass = %s, want 8000", got)
	}
}

func TestHandleAdminDetailUpdate_RejectsBadMass(t *testing.T) {
	srv := newTestApp(t)
	if _, err := seed.Run(srv.db, seed.Config{}); err != nil {
		t.Fatalf("seed reference data: %v", err)
	}
	router := newAdminRouter(srv)

	for _, mass := range []string{"", "heavy", "0", "-5"} {
		rr := adminPost(t, router, "/admin/details/1", url.Values{"mass_kg": {mass}})
		location := assertRedirect(t, rr, "/admin/details")
		if location.Query().Get("error") == "" {
			t.Fatalf("expected a validation message for mass %q", mass)
		}
	}

	var original string
	if err := srv.db.QueryRow(`SELECT mass_kg FROM details WHERE id = 1`).Scan(&original); err != nil {
		t.Fatalf("query detail: %v", err)
	}
	if original != "7500" {
		t.Fatalf("rejected update still changed mass to %q", original)
	}
}

func TestHandleAdminDetailUpdate_UnknownID(t *testing.T) {
	srv := newTestApp(t)
	if _, err := seed.Run(srv.db, seed.Config{}); err != nil {
		t.Fatalf("seed reference data: %v", err)
	}
	router := newAdminRouter(srv)

	rr := adminPost(t, router, "/admin/details/999", url.Values{"mass_kg": {"100"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}

	rr = adminPost(t, router, "/admin/details/abc", url.Values{"mass_kg": {"100"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status for non-numeric id = %d, want 400", rr.Code)
	}
}

func TestParsePositiveDecimal(t *testing.T) {
	value, err := parsePositiveDecimal(" 12.5 ", "mass_kg")
	if err != nil {
		t.Fatalf("parsePositiveDecimal: %v", err)
	}
	if value.String() != "12.5" {
		t.Fatalf("value = %s, want 12.5", value)
	}

	for _, raw := range []string{"", "abc", "0", "-1"} {
		if _, err := parsePositiveDecimal(raw, "mass_kg"); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
