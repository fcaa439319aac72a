// Package store persists cleaning runs in a local SQLite database and
// publishes them to Snowflake. A run writes two tables: layoffs_raw, the
// untouched snapshot of the ingested dataset, and layoffs_clean, the
// pipeline output. The raw table is the recovery point; it is only ever
// replaced wholesale by the next run, never transformed in place.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"layoffscrub/internal/common"
	"layoffscrub/internal/logging"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

const (
	// RawTable holds the ingested dataset exactly as read, before any stage.
	RawTable = "layoffs_raw"
	// CleanTable holds the pipeline output of the most recent run.
	CleanTable = "layoffs_clean"
)

// Store is the local SQLite database backing clean, analyze and inspect.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the store at path, creating the file and its parent
// directory if needed, and verifies the connection.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, common.DirPermissionNormal); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreOpen,
				fmt.Sprintf("Failed to create store directory %s", dir))
		}
	}

	// modernc sqlite DSN: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpen,
			fmt.Sprintf("Failed to open store %s", path))
	}

	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpen,
			fmt.Sprintf("Store %s is not usable", path)).
			WithSuggestions(
				"Check that the path is writable",
				"Remove the file if it is not a SQLite database",
			)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying pool for read-only consumers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// ReplaceRaw replaces the raw snapshot with rows. The date column keeps
// the cell text exactly as ingested.
func (s *Store) ReplaceRaw(ctx context.Context, rows []models.Record) error {
	return s.replaceTable(ctx, RawTable, rows, rawDateValue)
}

// ReplaceClean replaces the cleaned table with rows. Coerced dates are
// stored in ISO form so SQLite date functions sort and group them.
func (s *Store) ReplaceClean(ctx context.Context, rows []models.Record) error {
	return s.replaceTable(ctx, CleanTable, rows, cleanDateValue)
}

func (s *Store) replaceTable(ctx context.Context, table string, rows []models.Record, dateValue func(*models.Record) interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction,
			fmt.Sprintf("Failed to begin %s replacement", table))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return errors.SQLError(fmt.Sprintf("Failed to clear %s", table), "DELETE FROM "+table, err)
	}

	insert := fmt.Sprintf(insertColumns, table)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return errors.SQLError(fmt.Sprintf("Failed to prepare insert into %s", table), insert, err)
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		if _, err := stmt.ExecContext(ctx,
			r.Company,
			r.Location,
			r.Industry,
			r.TotalLaidOff,
			r.PercentageLaidOff,
			dateValue(r),
			r.Stage,
			r.Country,
			r.FundsRaisedMillions,
		); err != nil {
			return errors.SQLError(fmt.Sprintf("Failed to insert into %s", table), insert, err).
				WithContext("row", i+1).
				WithContext("company", r.Company)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction,
			fmt.Sprintf("Failed to commit %s replacement", table))
	}

	logging.Log.WithFields(map[string]interface{}{
		"table": table,
		"rows":  len(rows),
	}).Info("store table replaced")

	return nil
}

// CleanRows reads the cleaned table back in stored order. ISO date text
// becomes a real date; anything else survives as the raw text carrier.
func (s *Store) CleanRows(ctx context.Context) ([]models.Record, error) {
	return s.readRows(ctx, CleanTable, true)
}

// RawRows reads the raw snapshot back in stored order. Date cells stay
// text, exactly as ingested.
func (s *Store) RawRows(ctx context.Context) ([]models.Record, error) {
	return s.readRows(ctx, RawTable, false)
}

func (s *Store) readRows(ctx context.Context, table string, coerceDates bool) ([]models.Record, error) {
	query := "SELECT company, location, industry, total_laid_off, percentage_laid_off, date, stage, country, funds_raised_millions FROM " + table + " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.SQLError(fmt.Sprintf("Failed to read %s", table), query, err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var r models.Record
		var date sql.NullString
		if err := rows.Scan(
			&r.Company,
			&r.Location,
			&r.Industry,
			&r.TotalLaidOff,
			&r.PercentageLaidOff,
			&date,
			&r.Stage,
			&r.Country,
			&r.FundsRaisedMillions,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSQLExecution,
				fmt.Sprintf("Failed to scan a row of %s", table))
		}
		if date.Valid {
			if t, perr := time.Parse(models.ISODateLayout, date.String); coerceDates && perr == nil {
				r.Date = sql.NullTime{Time: t, Valid: true}
			} else {
				r.RawDate = date
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution,
			fmt.Sprintf("Failed to iterate %s", table))
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeNoResults,
			fmt.Sprintf("The %s table is empty", table)).
			WithSuggestions("Run 'layoffscrub clean <input.csv>' first")
	}
	return out, nil
}

// Counts reports the stored row counts of both tables.
type Counts struct {
	Raw   int64
	Clean int64
}

// Counts returns how many rows each table currently holds.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+RawTable).Scan(&c.Raw); err != nil {
		return c, errors.SQLError("Failed to count raw rows", "SELECT COUNT(*)", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+CleanTable).Scan(&c.Clean); err != nil {
		return c, errors.SQLError("Failed to count cleaned rows", "SELECT COUNT(*)", err)
	}
	return c, nil
}

const insertColumns = `INSERT INTO %s (company, location, industry, total_laid_off, percentage_laid_off, date, stage, country, funds_raised_millions) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func rawDateValue(r *models.Record) interface{} {
	if !r.RawDate.Valid {
		return nil
	}
	return r.RawDate.String
}

func cleanDateValue(r *models.Record) interface{} {
	if r.Date.Valid {
		return r.Date.Time.Format(models.ISODateLayout)
	}
	if r.RawDate.Valid {
		return r.RawDate.String
	}
	return nil
}
