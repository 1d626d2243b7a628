// Package runstore persists balance-sweep runs and their imbalance
// measurements in a sqlite database. The schema is managed with embedded
// migrations so a fresh database file is ready after Open.
package runstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gordi42/geobalance/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the sweep-results database.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Not closing m: that would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// CreateRun records a new sweep run with its scenario JSON and returns the
// generated run ID.
func (s *Store) CreateRun(scenario string) (string, error) {
	runID := uuid.New().String()
	_, err := s.Exec(
		`INSERT INTO runs (run_id, scenario) VALUES (?, ?)`,
		runID, scenario,
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	monitoring.Logf("runstore: created run %s", runID)
	return runID, nil
}

// Result is one imbalance measurement of a sweep.
type Result struct {
	Method          string
	NAve            int
	BackwardForward bool
	DiagPeriod      float64
	Imbalance       float64
	Elapsed         time.Duration
}

// RecordImbalance stores one measurement for the given run.
func (s *Store) RecordImbalance(runID string, r Result) error {
	bf := 0
	if r.BackwardForward {
		bf = 1
	}
	_, err := s.Exec(
		`INSERT INTO imbalances (run_id, method, n_ave, backward_forward, diag_period, imbalance, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Method, r.NAve, bf, r.DiagPeriod, r.Imbalance, r.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record imbalance: %w", err)
	}
	return nil
}

// ListResults returns the measurements of a run in insertion order.
func (s *Store) ListResults(runID string) ([]Result, error) {
	rows, err := s.Query(
		`SELECT method, n_ave, backward_forward, diag_period, imbalance, elapsed_ms
		 FROM imbalances WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var bf int
		var elapsedMs int64
		if err := rows.Scan(&r.Method, &r.NAve, &bf, &r.DiagPeriod, &r.Imbalance, &elapsedMs); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.BackwardForward = bf != 0
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Scenario returns the scenario JSON stored for a run.
func (s *Store) Scenario(runID string) (string, error) {
	var scenario string
	err := s.QueryRow(`SELECT scenario FROM runs WHERE run_id = ?`, runID).Scan(&scenario)
	if err != nil {
		return "", fmt.Errorf("load scenario for run %s: %w", runID, err)
	}
	return scenario, nil
}
