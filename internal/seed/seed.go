package seed

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type detailRow struct {
	name      string
	massKg    string
	available bool
}

// Reference data for the foundry pipeline. Stage order is load-bearing:
// positions are assigned from declaration order and the cost engine
// filters by stage prefix.
var processStages = []string{
	"Steel scrap preparation",
	"Furnace preparation (lining)",
	"Stopper preparation",
	"Ladle preparation (lining)",
	"Steel melting",
	"Steel pouring",
	"Sand mix preparation",
	"Mix and core transport to moulding line",
	"Pattern set and siphon tube installation",
	"Half-mould production",
	"Half-mould finishing and assembly",
	"Mould assembly",
	"Mould pouring",
	"Mould preparation for knockout",
	"Mould transfer and knockout",
	"Casting shakeout (primary fettling)",
	"Fettling",
	"Shot blasting",
	"Rotary table grinding",
	"Emery grinding",
	"Defect repair",
	"Non-destructive testing",
	"Heat treatment",
	"Casting acceptance",
}

var stopStages = []string{
	"Fettling",
	"Non-destructive testing",
	"Casting acceptance",
	"Shot blasting",
	"Emery grinding",
	"Defect repair",
	"Rotary table grinding",
	"Casting shakeout (primary fettling)",
}

var details = []detailRow{
	{name: "Frame", massKg: "7500", available: true},
	{name: "Beam", massKg: "3500"},
	{name: "Traction yoke", massKg: "1200"},
	{name: "Coupler 1008", massKg: "1350"},
	{name: "Coupler 1028", massKg: "1400"},
	{name: "Stop plate", massKg: "180"},
	{name: "Front stop", massKg: "140"},
	{name: "Rear stop", massKg: "140"},
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureProcessStages(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureStopStages(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDetails(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, HashPassword(password)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

// HashPassword returns the hex sha256 digest stored in users.password_hash.
// The login handler compares against the same digest.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func ensureProcessStages(tx *sql.Tx, stats *Stats) error {
	for position, name := range processStages {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM process_stages WHERE name = ? LIMIT 1)`, name).Scan(&exists); err != nil {
			return fmt.Errorf("check process stage existence: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO process_stages (name, position)
			VALUES (?, ?)
		`, name, position); err != nil {
			return fmt.Errorf("insert process stage %q: %w", name, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureStopStages(tx *sql.Tx, stats *Stats) error {
	for position, name := range stopStages {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM stop_stages WHERE stage_name = ? LIMIT 1)`, name).Scan(&exists); err != nil {
			return fmt.Errorf("check stop stage existence: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO stop_stages (stage_name, position)
			VALUES (?, ?)
		`, name, position); err != nil {
			return fmt.Errorf("insert stop stage %q: %w", name, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureDetails(tx *sql.Tx, stats *Stats) error {
	for _, d := range details {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM details WHERE name = ? LIMIT 1)`, d.name).Scan(&exists); err != nil {
			return fmt.Errorf("check detail existence: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO details (name, mass_kg, available)
			VALUES (?, ?, ?)
		`, d.name, d.massKg, d.available); err != nil {
			return fmt.Errorf("insert detail %q: %w", d.name, err)
		}
		stats.Inserts++
	}
	return nil
}
