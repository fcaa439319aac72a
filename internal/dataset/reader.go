// Package dataset reads and writes the nine-column layoffs CSV. The
// source exports encode SQL NULL as the literal string "NULL"; an empty
// cell stays an empty string. The two are kept distinct here because the
// cleaning pipeline unifies them on purpose, not by accident.
package dataset

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"layoffscrub/internal/logging"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// NullLiteral is the textual encoding of SQL NULL in layoff exports.
const NullLiteral = "NULL"

// ReadFile ingests a layoffs CSV. Any failure here is fatal: a cleaning
// run must start from a complete raw set or not at all.
func ReadFile(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IngestError(fmt.Sprintf("cannot open dataset %s", path), err).
			WithContext("path", path)
	}
	defer f.Close()

	rows, err := Read(f)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr.WithContext("path", path)
		}
		return nil, err
	}

	logging.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(rows),
	}).Info("dataset ingested")

	return rows, nil
}

// Read ingests a layoffs CSV from a stream.
func Read(r io.Reader) ([]models.Record, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeEmptyDataset, "dataset is empty").
			WithSeverity(errors.SeverityCritical)
	}
	if err != nil {
		return nil, errors.IngestError("failed to read dataset header", err)
	}

	if err := validateHeader(header); err != nil {
		return nil, err
	}

	var records []models.Record
	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.IngestError(fmt.Sprintf("failed to read row %d", line), err).
				WithContext("row", line)
		}

		rec, err := parseRecord(fields, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// validateHeader checks the fixed nine-column schema. Column order is
// part of the contract; a reordered export is a different dataset.
func validateHeader(header []string) error {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	if len(header) != len(models.Columns) {
		return errors.New(errors.ErrCodeSchemaMismatch,
			fmt.Sprintf("expected %d columns, found %d", len(models.Columns), len(header))).
			WithSeverity(errors.SeverityCritical).
			WithContext("header", header)
	}

	for i, want := range models.Columns {
		got := strings.ToLower(strings.TrimSpace(header[i]))
		if got != want {
			return errors.New(errors.ErrCodeSchemaMismatch,
				fmt.Sprintf("column %d is %q, expected %q", i+1, header[i], want)).
				WithSeverity(errors.SeverityCritical).
				WithContext("header", header)
		}
	}

	return nil
}

func parseRecord(fields []string, line int) (models.Record, error) {
	rec := models.Record{
		Company:  fields[0],
		Location: fields[1],
		Industry: nullableString(fields[2]),
		RawDate:  nullableString(fields[5]),
		Stage:    fields[6],
		Country:  fields[7],
	}

	var err error
	if rec.TotalLaidOff, err = nullableInt(fields[3]); err != nil {
		return rec, rowError(line, "total_laid_off", fields[3], err)
	}
	if rec.PercentageLaidOff, err = nullableDecimal(fields[4]); err != nil {
		return rec, rowError(line, "percentage_laid_off", fields[4], err)
	}
	if rec.FundsRaisedMillions, err = nullableInt(fields[8]); err != nil {
		return rec, rowError(line, "funds_raised_millions", fields[8], err)
	}

	return rec, nil
}

func rowError(line int, column, value string, cause error) error {
	return errors.Wrap(cause, errors.ErrCodeRowMalformed,
		fmt.Sprintf("row %d: %s %q is not numeric", line, column, value)).
		WithSeverity(errors.SeverityCritical).
		WithContext("row", line).
		WithContext("column", column).
		WithContext("value", value)
}

func nullableString(s string) sql.NullString {
	if s == NullLiteral {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt(s string) (sql.NullInt64, error) {
	if s == NullLiteral || s == "" {
		return sql.NullInt64{}, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: v, Valid: true}, nil
}

func nullableDecimal(s string) (decimal.NullDecimal, error) {
	if s == NullLiteral || s == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: v, Valid: true}, nil
}
