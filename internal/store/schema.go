package store

import (
	"context"
	"fmt"

	"layoffscrub/pkg/errors"
)

// Schema v1. Both tables share the nine dataset columns. The id column
// only preserves insertion order for read-back; it is not part of the
// dataset and is never exported. percentage_laid_off is TEXT so decimals
// round-trip exactly, and date is TEXT (raw keeps the ingested cell,
// clean holds ISO 2006-01-02).
const schemaVersion = 1

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS layoffs_raw (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  company TEXT NOT NULL,
  location TEXT NOT NULL,
  industry TEXT,
  total_laid_off INTEGER,
  percentage_laid_off TEXT,
  date TEXT,
  stage TEXT NOT NULL,
  country TEXT NOT NULL,
  funds_raised_millions INTEGER
);`,
	`CREATE TABLE IF NOT EXISTS layoffs_clean (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  company TEXT NOT NULL,
  location TEXT NOT NULL,
  industry TEXT,
  total_laid_off INTEGER,
  percentage_laid_off TEXT,
  date TEXT,
  stage TEXT NOT NULL,
  country TEXT NOT NULL,
  funds_raised_millions INTEGER
);`,
	`CREATE INDEX IF NOT EXISTS idx_clean_company ON layoffs_clean(company);`,
	`CREATE INDEX IF NOT EXISTS idx_clean_date ON layoffs_clean(date);`,
}

// Init brings the database schema up to the current version. Safe to
// call on every open.
func (s *Store) Init(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin schema migration")
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreOpen, "Failed to read store schema version")
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	for _, stmt := range schemaV1 {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.SQLError("Failed to apply store schema", stmt, err)
		}
	}

	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d;", schemaVersion)); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreOpen, "Failed to record store schema version")
	}

	return tx.Commit()
}
