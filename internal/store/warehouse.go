package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"layoffscrub/internal/logging"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// Warehouse publishes the cleaned table to Snowflake. Publishing is the
// only outward write the tool performs: it replaces the configured
// warehouse table with the cleaned rows inside one transaction, so a
// failed publish leaves the previous contents untouched.
type Warehouse struct {
	db        *sql.DB
	cfg       models.Warehouse
	password  string
	timeout   time.Duration
	connected bool
}

// NewWarehouse creates a publisher for the configured target. The
// password comes from the credential store, never from the config file.
func NewWarehouse(cfg models.Warehouse, password string) *Warehouse {
	return &Warehouse{
		cfg:      cfg,
		password: password,
		timeout:  30 * time.Second,
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateWarehouse checks that every field needed to reach the target
// is present. Identifiers are checked because they are spliced into SQL
// text; bind parameters cannot carry them.
func ValidateWarehouse(cfg models.Warehouse, password string) error {
	required := []struct {
		field string
		value string
	}{
		{"warehouse.account", cfg.Account},
		{"warehouse.username", cfg.Username},
		{"warehouse.role", cfg.Role},
		{"warehouse.warehouse", cfg.Warehouse},
		{"warehouse.database", cfg.Database},
		{"warehouse.schema", cfg.Schema},
		{"warehouse.table", cfg.Table},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.ConfigError(fmt.Sprintf("%s is not configured", r.field), r.field)
		}
	}
	if !identifierPattern.MatchString(cfg.Table) {
		return errors.ConfigError(
			fmt.Sprintf("warehouse.table %q is not a plain SQL identifier", cfg.Table),
			"warehouse.table")
	}
	if password == "" {
		return errors.New(errors.ErrCodeCredentialNotFound, "No warehouse password is stored").
			WithContext("user", cfg.Username).
			WithSuggestions("Run 'layoffscrub setup' to store the warehouse password")
	}
	return nil
}

// Connect establishes the warehouse connection, retrying transient
// network failures with backoff.
func (w *Warehouse) Connect(ctx context.Context) error {
	if w.connected {
		return nil
	}
	if err := ValidateWarehouse(w.cfg, w.password); err != nil {
		return err
	}

	return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		db, err := sql.Open("snowflake", w.dsn())
		if err != nil {
			return errors.ConnectionError("Failed to open warehouse connection", err).
				WithContext("account", w.cfg.Account).
				WithContext("warehouse", w.cfg.Warehouse)
		}

		db.SetMaxOpenConns(2)
		db.SetConnMaxLifetime(10 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()

			if strings.Contains(strings.ToLower(err.Error()), "authentication") {
				return errors.New(errors.ErrCodeAuthenticationFailed, "Warehouse authentication failed").
					WithContext("user", w.cfg.Username).
					WithSuggestions(
						"Verify the username and stored password",
						"Run 'layoffscrub setup' to update credentials",
						"Check whether the account is locked",
					)
			}

			return errors.ConnectionError("Failed to connect to warehouse", err).
				WithContext("account", w.cfg.Account).
				AsRecoverable()
		}

		w.db = db
		w.connected = true
		return nil
	})
}

// TestConnection verifies the configured warehouse is reachable.
func (w *Warehouse) TestConnection(ctx context.Context) error {
	if !w.connected {
		if err := w.Connect(ctx); err != nil {
			return err
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.db.PingContext(pingCtx)
}

// Close closes the warehouse connection.
func (w *Warehouse) Close() error {
	if !w.connected {
		return nil
	}
	w.connected = false
	return w.db.Close()
}

// Publish replaces the warehouse table with rows. The table is created
// on first publish.
func (w *Warehouse) Publish(ctx context.Context, rows []models.Record) error {
	if !w.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to the warehouse").
			WithSuggestions("Call Connect before publishing")
	}
	if len(rows) == 0 {
		return errors.New(errors.ErrCodeNoResults, "Nothing to publish: the cleaned table is empty").
			WithSuggestions("Run 'layoffscrub clean <input.csv>' first")
	}

	table := w.cfg.Table

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin publish transaction")
	}
	defer func() { _ = tx.Rollback() }()

	create := fmt.Sprintf(createWarehouseTable, table)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return errors.SQLError(fmt.Sprintf("Failed to create warehouse table %s", table), create, err).
			WithContext("table", table)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return errors.SQLError(fmt.Sprintf("Failed to clear warehouse table %s", table), "DELETE FROM "+table, err).
			WithContext("table", table)
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
			cleanDateValue(r),
			r.Stage,
			r.Country,
			r.FundsRaisedMillions,
		); err != nil {
			return errors.SQLError(fmt.Sprintf("Failed to publish a row to %s", table), insert, err).
				WithContext("row", i+1).
				WithContext("company", r.Company)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit publish transaction").
			WithContext("table", table)
	}

	logging.Log.WithFields(map[string]interface{}{
		"table":     table,
		"database":  w.cfg.Database,
		"schema":    w.cfg.Schema,
		"rows":      len(rows),
		"warehouse": w.cfg.Warehouse,
	}).Info("cleaned dataset published")

	return nil
}

func (w *Warehouse) dsn() string {
	return fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
		w.cfg.Username,
		w.password,
		w.cfg.Account,
		w.cfg.Database,
		w.cfg.Schema,
		w.cfg.Warehouse,
		w.cfg.Role,
	)
}

const createWarehouseTable = `CREATE TABLE IF NOT EXISTS %s (
  company STRING NOT NULL,
  location STRING NOT NULL,
  industry STRING,
  total_laid_off NUMBER(38,0),
  percentage_laid_off NUMBER(10,4),
  date DATE,
  stage STRING NOT NULL,
  country STRING NOT NULL,
  funds_raised_millions NUMBER(38,0)
)`
