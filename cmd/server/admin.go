package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type adminDetail struct {
	ID        int64
	Name      string
	MassKg    string
	Available bool
	Notes     string
}

type adminDetailsViewData struct {
	baseViewData
	Details []adminDetail
}

func (s *server) handleAdminDetailsForm(w http.ResponseWriter, r *http.Request) {
	details, err := s.listAdminDetails()
	if err != nil {
		http.Error(w, "failed to load details", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_details.html", adminDetailsViewData{
		baseViewData: baseViewData{
			ErrorMessage:   r.URL.Query().Get("error"),
			SuccessMessage: r.URL.Query().Get("success"),
		},
		Details: details,
	})
}

func (s *server) handleAdminDetailUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid detail id", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	mass, err := parsePositiveDecimal(r.FormValue("mass_kg"), "mass_kg")
	if err != nil {
		redirectWithError(w, r, "/admin/details", err.Error())
		return
	}

	notes := strings.TrimSpace(r.FormValue("notes"))
	available := r.FormValue("available") == "1"

	result, err := s.db.Exec(`
		UPDATE details
		SET
			mass_kg = ?,
			available = ?,
			notes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, mass.String(), available, notes, id)
	if err != nil {
		http.Error(w, "failed to update detail", http.StatusInternalServerError)
		return
	}

	affected, err := result.RowsAffected()
	if err != nil {
		http.Error(w, "failed to update detail", http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		http.NotFound(w, r)
		return
	}

	if err := s.reloadDetails(); err != nil {
		http.Error(w, "failed to reload detail registry", http.StatusInternalServerError)
		return
	}

	redirectWithSuccess(w, r, "/admin/details", "Detail updated.")
}

func (s *server) listAdminDetails() ([]adminDetail, error) {
	rows, err := s.db.Query(`
		SELECT id, name, mass_kg, available, COALESCE(notes, '')
		FROM details
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]adminDetail, 0)
	for rows.Next() {
		var d adminDetail
		if err := rows.Scan(&d.ID, &d.Name, &d.MassKg, &d.Available, &d.Notes); err != nil {
			return nil, err
		}
		details = append(details, d)
	}

	return details, rows.Err()
}

func parsePositiveDecimal(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s must be numeric", field)
	}
	if value.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}
