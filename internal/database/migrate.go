package database

import (
	"database/sql"
	"fmt"
	"log"
)

// schemaVersion reads the applied migration level from PRAGMA
// user_version. A fresh database reports 0.
func schemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading user_version: %w", err)
	}
	return version, nil
}

// predatesVersioning reports whether the database was created by a
// stockpulse build from before schema versioning: the news table
// exists but user_version was never stamped.
func predatesVersioning(conn *sql.DB) (bool, error) {
	var count int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='news'",
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("inspecting schema: %w", err)
	}
	return count > 0, nil
}

// migrate applies every pending migration in order, stamping
// user_version as each one lands.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		// An unstamped database with tables already matches
		// migration 1, so stamp it instead of re-creating.
		old, err := predatesVersioning(conn)
		if err != nil {
			return err
		}
		if old {
			log.Printf("stamping pre-versioning database as schema 1")
			if _, err := conn.Exec("PRAGMA user_version = 1"); err != nil {
				return fmt.Errorf("stamping schema version: %w", err)
			}
			current = 1
		}
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	log.Printf("applying migration %d: %s", m.Version, m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	// modernc/sqlite rejects PRAGMA user_version inside a transaction.
	// A crash between commit and stamp is fine, the DDL is idempotent
	// and re-runs on the next open.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("stamping version %d: %w", m.Version, err)
	}
	return nil
}
