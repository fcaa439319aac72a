package dataset

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"layoffscrub/internal/logging"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

// WriteFile exports records as a layoffs CSV. Cleaned dates are written
// in ISO form; nulls are written as the NULL literal so a cleaned export
// round-trips through ReadFile.
func WriteFile(path string, rows []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation,
			fmt.Sprintf("cannot create output file %s", path)).
			WithContext("path", path)
	}
	defer f.Close()

	if err := Write(f, rows); err != nil {
		return err
	}

	logging.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(rows),
	}).Info("dataset written")

	return nil
}

// Write exports records to a stream.
func Write(w io.Writer, rows []models.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(models.Columns); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to write header")
	}

	for i, rec := range rows {
		if err := cw.Write(recordFields(rec)); err != nil {
			return errors.Wrap(err, errors.ErrCodeFileOperation,
				fmt.Sprintf("failed to write row %d", i+1))
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to flush output")
	}

	return nil
}

func recordFields(rec models.Record) []string {
	return []string{
		rec.Company,
		rec.Location,
		stringField(rec.Industry.Valid, rec.Industry.String),
		intField(rec.TotalLaidOff),
		stringField(rec.PercentageLaidOff.Valid, rec.PercentageLaidOff.Decimal.String()),
		dateField(rec),
		rec.Stage,
		rec.Country,
		intField(rec.FundsRaisedMillions),
	}
}

func stringField(valid bool, s string) string {
	if !valid {
		return NullLiteral
	}
	return s
}

func intField(v sql.NullInt64) string {
	if !v.Valid {
		return NullLiteral
	}
	return strconv.FormatInt(v.Int64, 10)
}

func dateField(rec models.Record) string {
	if rec.Date.Valid {
		return rec.Date.Time.Format(models.ISODateLayout)
	}
	if rec.RawDate.Valid {
		return rec.RawDate.String
	}
	return NullLiteral
}
