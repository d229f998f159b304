package catalog

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// LoadStageCatalog reads the process stage order and the stop-stage
// whitelist from the reference database.
func LoadStageCatalog(db *sql.DB) (*StageCatalog, error) {
	ordered, err := queryNames(db, `SELECT name FROM process_stages ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query process stages: %w", err)
	}

	stops, err := queryNames(db, `SELECT stage_name FROM stop_stages ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query stop stages: %w", err)
	}

	return NewStageCatalog(ordered, stops)
}

// LoadDetailRegistry reads every registered detail from the reference
// database, in insertion order.
func LoadDetailRegistry(db *sql.DB) (*DetailRegistry, error) {
	rows, err := db.Query(`
		SELECT name, mass_kg, available
		FROM details
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query details: %w", err)
	}
	defer rows.Close()

	details := make([]Detail, 0)
	for rows.Next() {
		var d Detail
		var mass string
		if err := rows.Scan(&d.Name, &mass, &d.Available); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		d.MassKg, err = decimal.NewFromString(mass)
		if err != nil {
			return nil, fmt.Errorf("parse mass for detail %q: %w", d.Name, err)
		}
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate details: %w", err)
	}

	return NewDetailRegistry(details)
}

func queryNames(db *sql.DB, query string) ([]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
