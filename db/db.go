// Package db provides the SQLite persistence of the node: the
// verification ledger (one record per creator) and the monotonic set of
// consumed replay keys.
package db

import (
	"database/sql"
)

// SQLite represents the SQLite database
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a new *SQLite database
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{
		db: db,
	}
}

// Migrate creates the tables needed for the database
func (r *SQLite) Migrate() error {
	query := `
	PRAGMA foreign_keys = ON;
	`
	_, err := r.db.Exec(query)
	if err != nil {
		return err
	}

	query = `
	CREATE TABLE IF NOT EXISTS verifications(
		creator TEXT NOT NULL PRIMARY KEY UNIQUE,
		isVerified INTEGER NOT NULL,
		verificationTime INTEGER NOT NULL,
		lighthouseHash TEXT NOT NULL,
		datasetSize INTEGER NOT NULL,
		trainingEpochs INTEGER NOT NULL,
		accuracy INTEGER NOT NULL,
		modelType TEXT NOT NULL,
		dataTimestamp INTEGER NOT NULL,
		expiryDuration INTEGER NOT NULL,
		insertedDatetime DATETIME
	);
	`
	_, err = r.db.Exec(query)
	if err != nil {
		return err
	}

	query = `
	CREATE TABLE IF NOT EXISTS replaykeys(
		key TEXT NOT NULL PRIMARY KEY UNIQUE,
		creator TEXT NOT NULL,
		consumedDatetime DATETIME
	);
	`
	_, err = r.db.Exec(query)
	if err != nil {
		return err
	}

	return nil
}
